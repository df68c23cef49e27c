package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
)

// Account endpoints.
const (
	EndpointLogin          = "/users/login/"
	EndpointLogout         = "/users/logout/"
	EndpointMe             = "/users/me/"
	EndpointForgotPassword = "/users/forgot_password/"
	EndpointResetPassword  = "/users/reset_password_confirm/"
)

// Resource describes one REST collection.
type Resource struct {
	Name string
	// Path is the collection path, e.g. "/patients/".
	Path string
	// ListPath overrides Path for listing; staff are listed under /users/staff/.
	ListPath string
	// UpdateMethod defaults to PUT.
	UpdateMethod string
}

var (
	Patients       = Resource{Name: "patients", Path: "/patients/", UpdateMethod: http.MethodPatch}
	Staff          = Resource{Name: "staff", Path: "/users/", ListPath: "/users/staff/"}
	Wards          = Resource{Name: "wards", Path: "/wards/"}
	Beds           = Resource{Name: "beds", Path: "/beds/"}
	Appointments   = Resource{Name: "appointments", Path: "/appointments/"}
	MedicalRecords = Resource{Name: "medical records", Path: "/medical-records/"}
	Prescriptions  = Resource{Name: "prescriptions", Path: "/prescriptions/"}
	LabTests       = Resource{Name: "lab tests", Path: "/lab-tests/"}
	Inventory      = Resource{Name: "inventory", Path: "/inventory/"}
	Bills          = Resource{Name: "bills", Path: "/bills/"}
	Visitors       = Resource{Name: "visitors", Path: "/visitors/"}
)

// Item returns the detail path for id.
func (r Resource) Item(id int64) string {
	return fmt.Sprintf("%s%d/", r.Path, id)
}

func (r Resource) List(q url.Values) Request {
	path := r.Path
	if r.ListPath != "" {
		path = r.ListPath
	}
	return Request{Method: http.MethodGet, Endpoint: path, Query: q}
}

func (r Resource) Create(body any) Request {
	return Request{Method: http.MethodPost, Endpoint: r.Path, Body: body}
}

func (r Resource) Update(id int64, body any) Request {
	method := r.UpdateMethod
	if method == "" {
		method = http.MethodPut
	}
	return Request{Method: method, Endpoint: r.Item(id), Body: body}
}

func (r Resource) Delete(id int64) Request {
	return Request{Method: http.MethodDelete, Endpoint: r.Item(id)}
}

// Action targets a detail route such as /appointments/4/cancel/.
func (r Resource) Action(id int64, action, method string, body any) Request {
	return Request{Method: method, Endpoint: fmt.Sprintf("%s%s/", r.Item(id), action), Body: body}
}
