package handler

import (
	"net/http"

	"github.com/xenking/marketplace/internal/domain/account"
	"github.com/xenking/marketplace/internal/domain/auth"
	"github.com/xenking/marketplace/internal/domain/validation"
)

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role"`
	BusinessName    string `json:"businessName"`
	BusinessAddress string `json:"businessAddress"`
	Phone           string `json:"phone"`
}

type registerResponse struct {
	Message string       `json:"message"`
	User    userResponse `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	role := auth.RoleCustomer
	if req.Role != "" {
		parsed, err := auth.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, validation.New("role", "must be customer or vendor"))
			return
		}
		role = parsed
	}

	u, err := h.accounts.Register(r.Context(), account.RegisterRequest{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		Role:            role,
		BusinessName:    req.BusinessName,
		BusinessAddress: req.BusinessAddress,
		Phone:           req.Phone,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg := "registration successful"
	if u.Role == auth.RoleVendor {
		msg = "registration successful, waiting for admin approval"
	}
	writeJSON(w, http.StatusCreated, registerResponse{Message: msg, User: toUser(u)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, User: toUser(res.User)})
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Profile(r.Context(), principal(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUser(u))
}
