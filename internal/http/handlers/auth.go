package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	intconfig "marketplace/internal/config"
	"marketplace/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthUser is the admin account payload returned on login. End-user auth
// lives outside this service; only the payment admin surface logs in here.
type AuthUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func Login(c *gin.Context) {
	var req loginRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	var (
		user         AuthUser
		passwordHash string
	)
	err := intconfig.DB.QueryRow(`
        SELECT id, name, email, password_hash, role
        FROM users
        WHERE email = ?
    `, req.Email).Scan(&user.ID, &user.Name, &user.Email, &passwordHash, &user.Role)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			RespondDomainError(c, domain.UnauthorizedError{Msg: "Email atau password salah"})
		} else {
			RespondError(c, http.StatusInternalServerError, "gagal query user", err)
		}
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		RespondDomainError(c, domain.UnauthorizedError{Msg: "Email atau password salah", Err: err})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(getEnv().JWTSecret))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "gagal membuat token", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "user": user})
}
