package handler // handler holds the echo handlers of the /api surface

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cane-truck-registry/internal/model"
	"github.com/iliyamo/cane-truck-registry/internal/service"
)

// envelope is the shape of every response body.
type envelope struct {
	Success    bool                 `json:"success"`
	Message    string               `json:"message,omitempty"`
	Data       interface{}          `json:"data,omitempty"`
	Errors     []service.FieldError `json:"errors,omitempty"`
	Pagination *pagination          `json:"pagination,omitempty"`
}

type pagination struct {
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Pages    int `json:"pages"`
}

func ok(c echo.Context, status int, msg string, data interface{}) error {
	return c.JSON(status, envelope{Success: true, Message: msg, Data: data})
}

func fail(c echo.Context, status int, msg string, fields []service.FieldError) error {
	return c.JSON(status, envelope{Success: false, Message: msg, Errors: fields})
}

func badBody(c echo.Context) error {
	return fail(c, http.StatusBadRequest, "invalid request body", nil)
}

// flexString accepts a JSON string or number. Clients send plate and card
// numbers both ways.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

func (f *flexString) ptr() *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}

// flexID parses an optional identifier field. Empty means absent.
func flexID(ve *service.ValidationError, field string, f *flexString) *uint64 {
	if f == nil || strings.TrimSpace(string(*f)) == "" {
		return nil
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(*f)), 10, 64)
	if err != nil || id == 0 {
		ve.Add(field, field+" must be a positive integer")
		return nil
	}
	return &id
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ve := &service.ValidationError{}
		ve.Add("id", "id must be a positive integer")
		return 0, ve
	}
	return id, nil
}

type userView struct {
	ID          uint64     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	GateID      *uint64    `json:"gateId"`
	GateName    string     `json:"gateName,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// newUserView is the public projection of a user. The password hash is
// never part of it.
func newUserView(u *model.User) userView {
	return userView{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		GateID:      u.GateID,
		GateName:    u.GateName,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

type referenceView struct {
	ID          uint64    `json:"id"`
	Name        string    `json:"name"`
	Phone       *string   `json:"phone,omitempty"`
	Address     *string   `json:"address,omitempty"`
	Location    *string   `json:"location,omitempty"`
	IsActive    bool      `json:"isActive"`
	TotalTrucks int64     `json:"totalTrucks"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newReferenceView(e *model.Reference) referenceView {
	v := referenceView{
		ID:          e.ID,
		Name:        e.Name,
		IsActive:    e.IsActive,
		TotalTrucks: e.TotalTrucks,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	switch e.Kind {
	case model.KindContractor:
		phone, address := e.Phone, e.Address
		v.Phone, v.Address = &phone, &address
	case model.KindFactory:
		location := e.Location
		v.Location = &location
	}
	return v
}

type truckView struct {
	ID                uint64            `json:"id"`
	PlateNumber       int64             `json:"plateNumber"`
	ContractorID      uint64            `json:"contractorId"`
	ContractorName    string            `json:"contractorName"`
	FactoryID         uint64            `json:"factoryId"`
	FactoryName       string            `json:"factoryName"`
	GateID            uint64            `json:"gateId"`
	GateName          string            `json:"gateName"`
	FactoryCardNumber int64             `json:"factoryCardNumber"`
	DeviceCardNumber  int64             `json:"deviceCardNumber"`
	RegisteredBy      uint64            `json:"registeredBy"`
	RegisteredByName  string            `json:"registeredByName,omitempty"`
	Status            model.TruckStatus `json:"status"`
	RegisteredAt      time.Time         `json:"registeredAt"`
	EditDeadline      time.Time         `json:"editDeadline"`
	DeliveredAt       *time.Time        `json:"deliveredAt,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	CanEdit           bool              `json:"canEdit"`
}

// newTruckView renders t; canEdit reflects whether the edit window is
// still open at now.
func newTruckView(t *model.Truck, now time.Time, requireFlag bool) truckView {
	return truckView{
		ID:                t.ID,
		PlateNumber:       t.PlateNumber,
		ContractorID:      t.ContractorID,
		ContractorName:    t.ContractorName,
		FactoryID:         t.FactoryID,
		FactoryName:       t.FactoryName,
		GateID:            t.GateID,
		GateName:          t.GateName,
		FactoryCardNumber: t.FactoryCardNumber,
		DeviceCardNumber:  t.DeviceCardNumber,
		RegisteredBy:      t.RegisteredBy,
		RegisteredByName:  t.RegisteredByName,
		Status:            t.Status,
		RegisteredAt:      t.RegisteredAt,
		EditDeadline:      t.EditDeadline,
		DeliveredAt:       t.DeliveredAt,
		Notes:             t.Notes,
		CanEdit:           t.Editable(now, requireFlag),
	}
}
