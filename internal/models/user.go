package models

import "time"

// DefaultUserType is assigned when registration does not specify one
const DefaultUserType = "customer"

// User is a registered customer or farmer
type User struct {
	ID           string    `json:"id" db:"id"`
	FirstName    string    `json:"firstName" db:"first_name"`
	LastName     string    `json:"lastName" db:"last_name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	UserType     string    `json:"userType" db:"user_type"`
	Phone        string    `json:"phone,omitempty" db:"phone"`
	Address      string    `json:"address,omitempty" db:"address"`
	FarmName     string    `json:"farmName,omitempty" db:"farm_name"`
	FarmSize     string    `json:"farmSize,omitempty" db:"farm_size"`
	SoilType     string    `json:"soilType,omitempty" db:"soil_type"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Registration is the input accepted by the register endpoint
type Registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	UserType  string `json:"userType"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	FarmName  string `json:"farmName"`
	FarmSize  string `json:"farmSize"`
	SoilType  string `json:"soilType"`
}

// UserSummary is what login returns about the user
type UserSummary struct {
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Summary projects the user onto the fields exposed after login
func (u *User) Summary() UserSummary {
	return UserSummary{
		Email:     u.Email,
		UserType:  u.UserType,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Classification is the label returned by the image classifier
type Classification struct {
	Prediction string  `json:"prediction"`
	Confidence float64 `json:"confidence"`
}
