package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medev/blogapi/config"
	"github.com/medev/blogapi/middleware"
	"github.com/medev/blogapi/models"
	"github.com/medev/blogapi/repositories"
	"github.com/medev/blogapi/utils"
)

const maxUsernameLen = 16

// AuthController handles registration, sessions, profile detail and the
// password change/reset endpoints.
type AuthController struct {
	users  repositories.UserRepository
	resets *utils.PasswordResetTokens
	mail   utils.MailSender
}

// NewAuthController creates an AuthController.
func NewAuthController(users repositories.UserRepository, resets *utils.PasswordResetTokens, mail utils.MailSender) *AuthController {
	return &AuthController{users: users, resets: resets, mail: mail}
}

type userDetailResponse struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Description string    `json:"description"`
	DateJoined  time.Time `json:"date_joined"`
}

func newUserDetailResponse(u *models.User) userDetailResponse {
	return userDetailResponse{
		ID:          u.ID,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Email:       u.Email,
		Description: u.Description,
		DateJoined:  u.DateJoined,
	}
}

// Register creates a local account and returns a session key.
func (a *AuthController) Register(ctx *gin.Context) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		Password1 string `json:"password1"`
		Password2 string `json:"password2"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	errs := map[string][]string{}

	req.Username = strings.TrimSpace(req.Username)
	switch {
	case req.Username == "":
		errs["username"] = append(errs["username"], "This field is required.")
	case len([]rune(req.Username)) > maxUsernameLen:
		errs["username"] = append(errs["username"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLen))
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		errs["email"] = append(errs["email"], "This field is required.")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		errs["email"] = append(errs["email"], "Enter a valid email address.")
	}

	if req.Password1 == "" {
		errs["password1"] = append(errs["password1"], "This field is required.")
	} else if msgs := utils.PasswordErrors(req.Password1); len(msgs) > 0 {
		errs["password1"] = append(errs["password1"], msgs...)
	}
	if req.Password1 != req.Password2 {
		errs["non_field_errors"] = append(errs["non_field_errors"], "The two password fields didn't match.")
	}

	if len(errs) == 0 {
		if _, err := a.users.FindByUsername(req.Username); err == nil {
			errs["username"] = append(errs["username"], "A user with that username already exists.")
		}
		if _, err := a.users.FindByEmail(req.Email); err == nil {
			errs["email"] = append(errs["email"], "A user is already registered with this e-mail address.")
		}
	}

	if len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	hash, err := utils.HashPassword(req.Password1)
	if err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to create account.")
		return
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := a.users.Insert(&user); err != nil {
		// Unique-index backstop: a concurrent registration can slip past the
		// duplicate checks above.
		if errors.Is(err, repositories.ErrDuplicate) {
			utils.FieldErrors(ctx, a.duplicateFieldErrors(user.ID, req.Username, req.Email))
			return
		}
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to create account.")
		return
	}

	key, err := a.sessionKey(&user)
	if err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to generate token.")
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"key": key})
}

// Login verifies credentials and returns a session key.
func (a *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	user, err := a.users.FindByUsername(strings.TrimSpace(req.Username))
	if err != nil || !user.IsActive || !utils.CheckPassword(user.PasswordHash, req.Password) {
		utils.FieldErrors(ctx, map[string][]string{
			"non_field_errors": {"Unable to log in with provided credentials."},
		})
		return
	}

	key, err := a.sessionKey(user)
	if err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to generate token.")
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"key": key})
}

// Logout blacklists the presented session token until its natural expiry.
func (a *AuthController) Logout(ctx *gin.Context) {
	authHeader := ctx.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 {
		token := strings.TrimSpace(parts[1])
		expiresAt := time.Now().Add(time.Duration(config.Get().SessionTokenHours) * time.Hour)
		if claims, err := utils.ParseToken(token); err == nil && claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		utils.BlacklistToken(token, expiresAt)
	}
	utils.Detail(ctx, http.StatusOK, "Successfully logged out.")
}

// UserDetail returns the authenticated user's profile fields.
func (a *AuthController) UserDetail(ctx *gin.Context) {
	user, ok := a.currentUser(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, newUserDetailResponse(user))
}

// UpdateUser applies a partial profile update. A username change regenerates
// the user's slug.
func (a *AuthController) UpdateUser(ctx *gin.Context) {
	user, ok := a.currentUser(ctx)
	if !ok {
		return
	}

	var req struct {
		Username    *string `json:"username"`
		Email       *string `json:"email"`
		FirstName   *string `json:"first_name"`
		LastName    *string `json:"last_name"`
		Description *string `json:"description"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	errs := map[string][]string{}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		switch {
		case username == "":
			errs["username"] = append(errs["username"], "This field may not be blank.")
		case len([]rune(username)) > maxUsernameLen:
			errs["username"] = append(errs["username"], fmt.Sprintf("Ensure this field has no more than %d characters.", maxUsernameLen))
		default:
			if other, err := a.users.FindByUsername(username); err == nil && other.ID != user.ID {
				errs["username"] = append(errs["username"], "A user with that username already exists.")
			} else {
				user.Username = username
			}
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if _, err := mail.ParseAddress(email); err != nil {
			errs["email"] = append(errs["email"], "Enter a valid email address.")
		} else if other, err := a.users.FindByEmail(email); err == nil && other.ID != user.ID {
			errs["email"] = append(errs["email"], "A user is already registered with this e-mail address.")
		} else {
			user.Email = email
		}
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if len([]rune(desc)) > 150 {
			errs["description"] = append(errs["description"], "Ensure this field has no more than 150 characters.")
		} else {
			user.Description = desc
		}
	}

	if len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	if err := a.users.Update(user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			utils.FieldErrors(ctx, a.duplicateFieldErrors(user.ID, user.Username, user.Email))
			return
		}
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to update profile.")
		return
	}
	ctx.JSON(http.StatusOK, newUserDetailResponse(user))
}

// PasswordChange replaces the authenticated user's credential. Success bumps
// the password version, revoking outstanding reset tokens.
func (a *AuthController) PasswordChange(ctx *gin.Context) {
	user, ok := a.currentUser(ctx)
	if !ok {
		return
	}

	var req struct {
		NewPassword1 string `json:"new_password1"`
		NewPassword2 string `json:"new_password2"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	if errs := validateNewPasswords(req.NewPassword1, req.NewPassword2); len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	if err := a.setPassword(user, req.NewPassword1); err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to change password.")
		return
	}
	utils.Detail(ctx, http.StatusOK, "New password has been saved.")
}

// PasswordReset issues a reset token for the submitted email. The response
// is identical whether or not the address matches an account.
func (a *AuthController) PasswordReset(ctx *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		utils.FieldErrors(ctx, map[string][]string{"email": {"This field is required."}})
		return
	}

	if user, err := a.users.FindByEmail(email); err == nil && user.IsActive {
		if utils.EmailCooldownTrySet(email, time.Minute) {
			a.sendResetMail(user)
		}
	}

	utils.Detail(ctx, http.StatusOK, "Password reset e-mail has been sent.")
}

// PasswordResetConfirm redeems a uid/token pair and sets the new password.
func (a *AuthController) PasswordResetConfirm(ctx *gin.Context) {
	var req struct {
		NewPassword1 string `json:"new_password1"`
		NewPassword2 string `json:"new_password2"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Detail(ctx, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	id, err := utils.DecodeUID(ctx.Param("uid"))
	if err != nil {
		utils.FieldErrors(ctx, map[string][]string{"uid": {"Invalid value"}})
		return
	}
	user, err := a.users.FindByID(id)
	if err != nil {
		utils.FieldErrors(ctx, map[string][]string{"uid": {"Invalid value"}})
		return
	}

	if !a.resets.Check(user.ID, user.PasswordVersion, ctx.Param("token")) {
		utils.FieldErrors(ctx, map[string][]string{"token": {"Invalid value"}})
		return
	}

	if errs := validateNewPasswords(req.NewPassword1, req.NewPassword2); len(errs) > 0 {
		utils.FieldErrors(ctx, errs)
		return
	}

	if err := a.setPassword(user, req.NewPassword1); err != nil {
		utils.Detail(ctx, http.StatusInternalServerError, "Failed to reset password.")
		return
	}
	utils.Detail(ctx, http.StatusOK, "Password has been reset with the new password.")
}

func (a *AuthController) sessionKey(user *models.User) (string, error) {
	ttl := time.Duration(config.Get().SessionTokenHours) * time.Hour
	return utils.GenerateToken(user.ID, user.Username, ttl)
}

func (a *AuthController) currentUser(ctx *gin.Context) (*models.User, bool) {
	id, ok := middleware.Caller(ctx)
	if !ok {
		utils.Detail(ctx, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return nil, false
	}
	user, err := a.users.FindByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			utils.Detail(ctx, http.StatusUnauthorized, "Invalid token.")
		} else {
			utils.Detail(ctx, http.StatusInternalServerError, "Failed to load account.")
		}
		return nil, false
	}
	return user, true
}

// setPassword atomically replaces the credential and bumps the password
// version, making every outstanding reset token unverifiable.
func (a *AuthController) setPassword(user *models.User, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.PasswordVersion++
	return a.users.Update(user)
}

// duplicateFieldErrors attributes a unique-index violation to the colliding
// field(s) by re-querying after the failed write.
func (a *AuthController) duplicateFieldErrors(selfID uint, username, email string) map[string][]string {
	errs := map[string][]string{}
	if other, err := a.users.FindByUsername(username); err == nil && other.ID != selfID {
		errs["username"] = []string{"A user with that username already exists."}
	}
	if other, err := a.users.FindByEmail(email); err == nil && other.ID != selfID {
		errs["email"] = []string{"A user is already registered with this e-mail address."}
	}
	if len(errs) == 0 {
		errs["username"] = []string{"A user with that username already exists."}
	}
	return errs
}

func (a *AuthController) sendResetMail(user *models.User) {
	cfg := config.Get()
	uid := utils.EncodeUID(user.ID)
	token := a.resets.Generate(user.ID, user.PasswordVersion)
	link := fmt.Sprintf("%s/auth/password/reset-confirm/%s/%s/", cfg.ResetConfirmBase, uid, token)
	body := fmt.Sprintf(
		"You're receiving this e-mail because you requested a password reset for your account.\n\n"+
			"Please go to the following page and choose a new password:\n\n%s\n", link)
	if err := a.mail(user.Email, "Password reset", body); err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("password reset mail to user %d failed: %v", user.ID, err)
	}
}

func validateNewPasswords(p1, p2 string) map[string][]string {
	errs := map[string][]string{}
	if p1 == "" {
		errs["new_password1"] = append(errs["new_password1"], "This field is required.")
	}
	if p2 == "" {
		errs["new_password2"] = append(errs["new_password2"], "This field is required.")
	}
	if len(errs) > 0 {
		return errs
	}
	if p1 != p2 {
		errs["new_password2"] = append(errs["new_password2"], "The two password fields didn't match.")
		return errs
	}
	if msgs := utils.PasswordErrors(p2); len(msgs) > 0 {
		errs["new_password2"] = append(errs["new_password2"], msgs...)
	}
	return errs
}
