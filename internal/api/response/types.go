package response

import (
	"time"

	"github.com/quietfloor/readingroom/internal/model"
	"github.com/quietfloor/readingroom/internal/services/auth"
	"github.com/quietfloor/readingroom/internal/services/forecast"
)

// Account represents an account in API responses
type Account struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	Reputation int    `json:"reputation"`
}

// AccountFromModel converts a model.Account to a response Account
func AccountFromModel(a *model.Account) Account {
	return Account{
		ID:         string(a.ID),
		Username:   a.Username,
		Role:       string(a.Role),
		Reputation: a.Reputation,
	}
}

// AuthResponse is the response for authentication endpoints. The
// identity object is keyed "user" on the wire.
type AuthResponse struct {
	User      Account   `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		User:      AccountFromModel(&s.Account),
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt,
	}
}

// RegisterResponse is the response for account registration
type RegisterResponse struct {
	Account Account `json:"account"`
}

// SnowPrediction is one day of the snow outlook
type SnowPrediction struct {
	Date        string `json:"date"`
	Probability int    `json:"probability"`
	Reason      string `json:"reason"`
}

// SnowPredictionFromModel converts a forecast.Prediction
func SnowPredictionFromModel(p forecast.Prediction) SnowPrediction {
	return SnowPrediction{
		Date:        p.Date,
		Probability: p.Probability,
		Reason:      p.Reason,
	}
}

// SnowPredictionsFromModel converts a slice of forecast.Prediction
func SnowPredictionsFromModel(ps []forecast.Prediction) []SnowPrediction {
	out := make([]SnowPrediction, len(ps))
	for i, p := range ps {
		out[i] = SnowPredictionFromModel(p)
	}
	return out
}
