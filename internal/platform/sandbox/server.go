package sandbox

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/middleware"
	"github.com/ehr/hospital/pkg/validation"
)

// Options configures a Server.
type Options struct {
	SigningKey []byte
	TokenTTL   time.Duration
	Seed       SeedConfig
	// RequestTimeout bounds each handler. Zero disables it.
	RequestTimeout time.Duration
	// OnPasswordReset receives the reset link parts instead of an email.
	OnPasswordReset func(email, uidb64, token string)
	// Now is used for timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Server is the sandbox API. All routes live under /api.
type Server struct {
	echo    *echo.Echo
	issuer  *auth.TokenIssuer
	revoked *auth.TokenRevocationStore
	logger  zerolog.Logger
	opts    Options

	mu     sync.Mutex
	data   *tables
	resets map[int64]string
}

// New seeds a dataset and builds the routes. Call Close when done.
func New(opts Options, logger zerolog.Logger) (*Server, error) {
	if len(opts.SigningKey) == 0 {
		return nil, errors.New("sandbox: signing key is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	d, err := Seed(opts.Seed)
	if err != nil {
		return nil, err
	}

	s := &Server{
		echo:    echo.New(),
		issuer:  auth.NewTokenIssuer(opts.SigningKey, opts.TokenTTL),
		revoked: auth.NewTokenRevocationStore(time.Minute),
		logger:  logger.With().Str("component", "sandbox").Logger(),
		opts:    opts,
		data:    newTables(d),
		resets:  map[int64]string{},
	}
	s.routes()
	sum := d.Summary()
	s.logger.Info().
		Int("users", sum.Users).
		Int("patients", sum.Patients).
		Int("wards", sum.Wards).
		Int("beds", sum.Beds).
		Msg("sandbox seeded")
	return s, nil
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler

	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.RequestTimeout(s.opts.RequestTimeout))
	e.Use(auth.TokenMiddleware(s.issuer, s.revoked, auth.AuthSkipper))

	api := e.Group("/api")
	api.GET("/health/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	s.registerUsers(api)
	s.registerPatients(api)
	s.registerWards(api)
	s.registerAppointments(api)
	s.registerClinical(api)
	s.registerInventory(api)
	s.registerBilling(api)
	s.registerVisitors(api)

	admin := api.Group("/sandbox", auth.RequireRole("admin"))
	admin.POST("/reset/", s.reset)
	admin.GET("/export/", s.export)
}

// Handler exposes the routes, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting sandbox")
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener and releases background resources.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.Close()
	return s.echo.Shutdown(ctx)
}

// Close stops the revocation cleanup loop.
func (s *Server) Close() {
	s.revoked.Close()
}

// Snapshot returns a copy of the current data.
func (s *Server) Snapshot() *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.dataset()
}

func (s *Server) reset(c echo.Context) error {
	d, err := Seed(s.opts.Seed)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = newTables(d)
	s.resets = map[int64]string{}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, d.Summary())
}

func (s *Server) export(c echo.Context) error {
	d := s.Snapshot()
	c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
	c.Response().WriteHeader(http.StatusOK)
	return d.ExportNDJSON(c.Response())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// errorBody answers {"error": msg}.
func errorBody(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// invalid answers a field map when err is a validation failure and a
// detail otherwise.
func invalid(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, verrs)
	}
	return middleware.Detail(c, http.StatusBadRequest, err.Error())
}

// bind decodes the request body into v.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "JSON parse error.")
	}
	return nil
}

func idParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not found.")
	}
	return id, nil
}

func notFound() error {
	return echo.NewHTTPError(http.StatusNotFound, "Not found.")
}

func callerID(c echo.Context) int64 {
	return auth.UserIDFromContext(c.Request().Context())
}

func callerRole(c echo.Context) string {
	return auth.RoleFromContext(c.Request().Context())
}

func (s *Server) stamp() *time.Time {
	t := s.opts.Now().UTC()
	return &t
}

func (s *Server) today() string {
	return s.opts.Now().Format(time.DateOnly)
}
