package domain

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Hash      string `db:"password_hash"`
	Role      string `db:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Customer is the shopping profile of a user. UserID becomes empty once the
// user account is deleted; the customer row stays for its orders.
type Customer struct {
	ID      string `db:"id"`
	UserID  string `db:"user_id"`
	Phone   string `db:"phone"`
	Address string `db:"address"`
}
