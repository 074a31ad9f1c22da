package http

import (
	"net/http"

	"invoicer/internal/core"
)

// Customers

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.Customers()).Write(w)
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	c, ok := s.store.Customer(pathID(r))
	if !ok {
		NotFoundError("customer not found").Write(w)
		return
	}
	NewJSONResponse().Body(c).Write(w)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c core.Customer
	if err := DecodeJSON(w, r, &c); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.saveCustomer(w, r, core.NewCustomer(c), http.StatusCreated)
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var c core.Customer
	if err := DecodeJSON(w, r, &c); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	c.ID = pathID(r)
	s.saveCustomer(w, r, c, http.StatusOK)
}

func (s *Server) saveCustomer(w http.ResponseWriter, r *http.Request, c core.Customer, status int) {
	c.Name = sanitizeInput(c.Name)
	c.CompanyName = sanitizeInput(c.CompanyName)
	c.Email = sanitizeInput(c.Email)
	c.Phone = sanitizeInput(c.Phone)
	c.Address = sanitizeInput(c.Address)
	if err := c.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}
	NewJSONResponse().Status(status).Body(s.store.SaveCustomer(r.Context(), c)).Write(w)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteCustomer(r.Context(), pathID(r))
	NoContent().Write(w)
}

// Users

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.Users()).Write(w)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, ok := s.store.User(pathID(r))
	if !ok {
		NotFoundError("user not found").Write(w)
		return
	}
	NewJSONResponse().Body(u).Write(w)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var u core.User
	if err := DecodeJSON(w, r, &u); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.saveUser(w, r, core.NewUser(u), http.StatusCreated)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var u core.User
	if err := DecodeJSON(w, r, &u); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	u.ID = pathID(r)
	s.saveUser(w, r, u, http.StatusOK)
}

func (s *Server) saveUser(w http.ResponseWriter, r *http.Request, u core.User, status int) {
	u.Name = sanitizeInput(u.Name)
	u.Email = sanitizeInput(u.Email)
	if err := u.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}
	NewJSONResponse().Status(status).Body(s.store.SaveUser(r.Context(), u)).Write(w)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.store.DeleteUser(r.Context(), pathID(r))
	NoContent().Write(w)
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(s.store.Settings()).Write(w)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var v core.Settings
	if err := DecodeJSON(w, r, &v); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	v.BusinessName = sanitizeInput(v.BusinessName)
	if err := v.Validate(); err != nil {
		ValidationError(err).Write(w)
		return
	}
	NewJSONResponse().Body(s.store.SaveSettings(r.Context(), v)).Write(w)
}
