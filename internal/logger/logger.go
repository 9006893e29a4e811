package logger

import (
	"go.uber.org/zap"
)

// New builds the application logger. Development gets the human-readable
// console encoder, everything else structured JSON.
func New(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
