package service

import (
	"fmt"

	"github.com/adakita/loan-service/internal/auth"
	"github.com/adakita/loan-service/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var allowedRoles = map[string]bool{
	models.RoleUser:    true,
	models.RoleAdmin:   true,
	models.RoleMaker:   true,
	models.RoleChecker: true,
}

// Register creates a new user with hashed password
func (s *Service) Register(username, email, password, role string) (*models.User, error) {
	if role == "" {
		role = models.RoleUser
	}
	if !allowedRoles[role] {
		return nil, fmt.Errorf("unknown role: %s", role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}

	if err := s.users.CreateUser(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s (%s)", user.Email, user.Role)
	return user, nil
}

// Login authenticates a user and returns a JWT token
func (s *Service) Login(email, password string) (string, error) {
	user, err := s.users.FindUserByEmail(email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	token, err := auth.GenerateToken(s.config.JWTSecret, user)
	if err != nil {
		return "", err
	}

	s.log.Infof("User logged in: %s", user.Email)
	return token, nil
}
