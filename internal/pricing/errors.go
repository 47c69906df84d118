package pricing

import (
	"errors"
	"fmt"
)

// Resource names carried by LoadError.
const (
	ResourceOptions = "options"
	ResourceModels  = "models"
	ResourceSeries  = "series"
)

// ErrServiceUnavailable is returned by CheckHealth when the service does not
// answer with a success status.
var ErrServiceUnavailable = errors.New("API bağlantı hatası")

// DefaultPredictionMessage is shown when the service rejects a prediction
// without a usable detail message.
const DefaultPredictionMessage = "Tahmin hatası"

var loadMessages = map[string]string{
	ResourceOptions: "Seçenekler yüklenemedi",
	ResourceModels:  "Modeller yüklenemedi",
	ResourceSeries:  "Seriler yüklenemedi",
}

// LoadError reports a failed reference-data fetch (options, models or series).
// Status is zero when the request never got a response.
type LoadError struct {
	Resource string
	Status   int
	Err      error
}

func (e *LoadError) Error() string {
	if msg, ok := loadMessages[e.Resource]; ok {
		return msg
	}
	return fmt.Sprintf("%s yüklenemedi", e.Resource)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PredictionError reports a failed prediction. Message holds the server's
// detail text when one was supplied.
type PredictionError struct {
	Status  int
	Message string
	Err     error
}

func (e *PredictionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultPredictionMessage
}

func (e *PredictionError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a LoadError for resource.
func IsLoadError(err error, resource string) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Resource == resource
}
