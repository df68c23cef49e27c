package sandbox

import (
	"encoding/base64"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/hospital/internal/domain/identity"
	"github.com/ehr/hospital/internal/platform/auth"
	"github.com/ehr/hospital/internal/platform/middleware"
	"github.com/ehr/hospital/pkg/validation"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) registerUsers(api *echo.Group) {
	users := api.Group("/users")
	users.POST("/login/", s.login, middleware.RateLimit(middleware.LoginRateLimitConfig()))
	users.POST("/logout/", s.logout)
	users.GET("/me/", s.me)
	users.POST("/forgot_password/", s.forgotPassword)
	users.POST("/reset_password_confirm/", s.resetPasswordConfirm)
	users.GET("/doctors/", s.listByRole(identity.RoleDoctor))
	users.GET("/nurses/", s.listByRole(identity.RoleNurse))

	admin := users.Group("", auth.RequireRole("admin"))
	admin.GET("/", s.listUsers)
	admin.GET("/staff/", s.listStaff)
	admin.POST("/", s.createUser)
	admin.GET("/:id/", s.getUser)
	admin.PUT("/:id/", s.updateUser)
	admin.PATCH("/:id/", s.updateUser)
	admin.DELETE("/:id/", s.deleteUser)
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := validation.Struct(req); err != nil {
		return invalid(c, err)
	}

	s.mu.Lock()
	u, ok := s.data.userByUsername(req.Username)
	hash := s.data.passwords[u.ID]
	s.mu.Unlock()
	if !ok || u.Status == "inactive" || !auth.CheckPassword(hash, req.Password) {
		return c.JSON(http.StatusBadRequest, validation.Errors{"non_field_errors": {"Invalid credentials"}})
	}

	token, claims, err := s.issuer.Issue(u.ID, u.Username, string(u.Role))
	if err != nil {
		return err
	}
	s.revoked.Track(u.ID, claims.ID, claims.ExpiresAt.Time)
	s.logger.Info().Int64("user_id", u.ID).Str("role", string(u.Role)).Msg("login")
	return c.JSON(http.StatusOK, map[string]any{"token": token, "user": u})
}

func (s *Server) logout(c echo.Context) error {
	claims := auth.ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return errorBody(c, http.StatusBadRequest, "Error logging out")
	}
	s.revoked.Revoke(claims.ID, claims.ExpiresAt.Time)
	return c.JSON(http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (s *Server) me(c echo.Context) error {
	s.mu.Lock()
	u, ok := s.data.users.get(callerID(c))
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) forgotPassword(c echo.Context) error {
	var req identity.PasswordResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}

	s.mu.Lock()
	u, ok := s.data.userByEmail(req.Email)
	token := uuid.NewString()
	if ok {
		s.resets[u.ID] = token
	}
	s.mu.Unlock()
	if !ok {
		return errorBody(c, http.StatusBadRequest, "User with this email does not exist.")
	}

	uid := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(u.ID, 10)))
	s.logger.Info().Int64("user_id", u.ID).Str("uidb64", uid).Msg("password reset requested")
	if s.opts.OnPasswordReset != nil {
		s.opts.OnPasswordReset(req.Email, uid, token)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset instructions have been sent to your email"})
}

func (s *Server) resetPasswordConfirm(c echo.Context) error {
	var req identity.PasswordResetConfirm
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return invalid(c, err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(req.UIDB64)
	if err != nil {
		return errorBody(c, http.StatusBadRequest, "Invalid reset link")
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return errorBody(c, http.StatusBadRequest, "Invalid reset link")
	}
	hash, err := auth.HashPassword(req.NewPassword, s.opts.Seed.BcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	_, exists := s.data.users.get(id)
	want, pending := s.resets[id]
	if exists && pending && want == req.Token {
		s.data.passwords[id] = hash
		delete(s.resets, id)
	}
	s.mu.Unlock()

	switch {
	case !exists:
		return errorBody(c, http.StatusBadRequest, "Invalid reset link")
	case !pending || want != req.Token:
		return errorBody(c, http.StatusBadRequest, "Invalid or expired token")
	}
	n := s.revoked.RevokeAllForUser(id)
	s.logger.Info().Int64("user_id", id).Int("revoked_tokens", n).Msg("password reset")
	return c.JSON(http.StatusOK, map[string]string{"message": "Password has been reset successfully"})
}

func (s *Server) listUsers(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.users.all())
}

func (s *Server) listStaff(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.data.users.filter(func(u identity.User) bool {
		return u.Role != identity.RoleAdmin
	}))
}

func (s *Server) listByRole(role identity.Role) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.JSON(http.StatusOK, s.data.users.filter(func(u identity.User) bool {
			return u.Role == role && u.Status != "inactive"
		}))
	}
}

func (s *Server) getUser(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	u, ok := s.data.users.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) createUser(c echo.Context) error {
	var u identity.User
	if err := bind(c, &u); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return invalid(c, err)
	}
	password := u.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := auth.HashPassword(password, s.opts.Seed.BcryptCost)
	if err != nil {
		return err
	}
	u.Password = ""
	if u.Status == "" {
		u.Status = "active"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.data.userByUsername(u.Username); taken {
		return c.JSON(http.StatusBadRequest, validation.Errors{"username": {"A user with that username already exists."}})
	}
	created := s.data.users.insert(func(id int64) identity.User {
		u.ID = id
		u.CreatedAt, u.UpdatedAt = s.stamp(), s.stamp()
		return u
	})
	s.data.passwords[created.ID] = hash
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	u, ok := s.data.users.get(id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	// decode over the stored user so partial updates keep other fields
	created := u.CreatedAt
	if err := bind(c, &u); err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return invalid(c, err)
	}
	var hash string
	if u.Password != "" {
		if hash, err = auth.HashPassword(u.Password, s.opts.Seed.BcryptCost); err != nil {
			return err
		}
		u.Password = ""
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, created, s.stamp()

	s.mu.Lock()
	defer s.mu.Unlock()
	if other, taken := s.data.userByUsername(u.Username); taken && other.ID != id {
		return c.JSON(http.StatusBadRequest, validation.Errors{"username": {"A user with that username already exists."}})
	}
	if !s.data.users.put(u) {
		return notFound()
	}
	if hash != "" {
		s.data.passwords[id] = hash
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	ok := s.data.users.remove(id)
	delete(s.data.passwords, id)
	s.mu.Unlock()
	if !ok {
		return notFound()
	}
	s.revoked.RevokeAllForUser(id)
	return c.NoContent(http.StatusNoContent)
}
