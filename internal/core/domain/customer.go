package domain

import "time"

type Customer struct {
	ID         int64
	Name       string
	Email      string
	OrderCount int
	CreatedAt  time.Time
}

type Employee struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}
