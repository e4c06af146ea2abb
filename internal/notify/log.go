package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/menlo-oaks/crimefeed/internal/classify"
	"github.com/menlo-oaks/crimefeed/internal/model"
)

// LogNotifier writes alerts to the log only. It is the default delivery
// driver so a fresh install never mails anyone by accident.
type LogNotifier struct {
	areaName string
}

// NewLog creates a LogNotifier.
func NewLog(areaName string) *LogNotifier {
	return &LogNotifier{areaName: areaName}
}

// Notify logs the alert and always succeeds.
func (n *LogNotifier) Notify(_ context.Context, rec model.CrimeRecord, distanceMeters float64, cat classify.Category) error {
	zap.L().Info("notify: alert",
		zap.String("record_id", rec.ID()),
		zap.String("category", string(cat)),
		zap.String("subject", Subject(rec, distanceMeters, n.areaName)),
		zap.Float64("distance_m", distanceMeters))
	return nil
}
