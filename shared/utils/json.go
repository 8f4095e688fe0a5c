package utils

import (
	"encoding/json"

	"go.uber.org/zap"
)

// UnmarshalAndHandle decodifica data en T y, si no hay error, invoca handler.
// Los mensajes malformados se registran y se descartan.
func UnmarshalAndHandle[T any](log *zap.Logger, data []byte, handler func(T)) {
	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn("Failed to unmarshal event data", zap.Error(err))
		return
	}
	handler(evt)
}
