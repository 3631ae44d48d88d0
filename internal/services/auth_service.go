package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"gadgetshop/internal/domain"
	"gadgetshop/internal/repos"
	"gadgetshop/internal/validate"
)

var ErrBadCreds = errors.New("invalid email or password")

type AuthService struct {
	Tx        *repos.TxRunner
	Users     *repos.UserRepo
	Customers *repos.CustomerRepo
	Carts     *repos.CartRepo
}

func NewAuthService(tx *repos.TxRunner, users *repos.UserRepo, customers *repos.CustomerRepo, carts *repos.CartRepo) *AuthService {
	return &AuthService{Tx: tx, Users: users, Customers: customers, Carts: carts}
}

func (s *AuthService) Login(ctx context.Context, sid, email, password string) (*domain.User, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.Users.BindSession(ctx, sid, u.ID); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate checks credentials without touching any session.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, ErrBadCreds
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return u, nil
}

func (s *AuthService) Logout(ctx context.Context, sid string) error {
	return s.Users.UnbindSession(ctx, sid)
}

func (s *AuthService) CurrentUser(ctx context.Context, sid string) (*domain.User, error) {
	return s.Users.SessionUser(ctx, sid)
}

type Registration struct {
	Email     string
	FirstName string
	LastName  string
	Password  string
	Confirm   string
	Phone     string
	Address   string
}

// Register creates a user account together with its customer profile.
func (s *AuthService) Register(ctx context.Context, r Registration) (*domain.User, error) {
	email, ok := validate.Email(r.Email)
	if !ok {
		return nil, domain.Invalid("email", "is not a valid email address")
	}
	first, ok := validate.Name(r.FirstName)
	if !ok {
		return nil, domain.Invalid("first_name", "is required")
	}
	last, ok := validate.Text(r.LastName, 255)
	if !ok {
		return nil, domain.Invalid("last_name", "must be at most 255 characters")
	}
	if !validate.Password(r.Password) {
		return nil, domain.Invalid("password", "must be 8-20 characters with upper, lower, digit and symbol")
	}
	if r.Password != r.Confirm {
		return nil, domain.Invalid("confirm_password", "passwords do not match")
	}
	phone := ""
	if r.Phone != "" {
		if phone, ok = validate.Phone(r.Phone); !ok {
			return nil, domain.Invalid("phone", "is not a valid phone number")
		}
	}
	address, ok := validate.Text(r.Address, maxAddressLen)
	if !ok {
		return nil, domain.Invalid("address", fmt.Sprintf("must be at most %d characters", maxAddressLen))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(r.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Email: email, FirstName: first, LastName: last, Hash: string(hash), Role: domain.RoleUser}
	err = s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.Users.WithTx(tx).Create(ctx, u); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return domain.Invalid("email", "is already registered")
			}
			return err
		}
		customers := s.Customers.WithTx(tx)
		cust, err := customers.EnsureForUser(ctx, u.ID)
		if err != nil {
			return err
		}
		return customers.UpdateContact(ctx, cust.ID, phone, address)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) { return s.Users.List(ctx) }

// DeleteUser removes the account. The customer profile and its orders stay;
// the customer's open cart goes with the account.
func (s *AuthService) DeleteUser(ctx context.Context, id string) error {
	return s.Tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		customers := s.Customers.WithTx(tx)
		cust, err := customers.ByUser(ctx, id)
		switch {
		case err == nil:
			if err := s.Carts.WithTx(tx).DeleteOpenForOwner(ctx, cust.ID); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return s.Users.WithTx(tx).DeleteUserCascade(ctx, id)
	})
}
