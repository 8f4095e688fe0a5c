package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse define la estructura estándar para las respuestas de error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// ErrorStatus asocia un error centinela con su código HTTP.
type ErrorStatus struct {
	Err    error
	Status int
}

// SendMessage envía {message, <key>: data}. Con key vacía solo va el mensaje.
func SendMessage(c *gin.Context, statusCode int, message, key string, data interface{}) {
	body := gin.H{"message": message}
	if key != "" {
		body[key] = data
	}
	c.JSON(statusCode, body)
}

// SendError envía una respuesta de error con un formato estandarizado.
func SendError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error": ErrorResponse{
			Message: message,
		},
	})
}

// SendMappedError busca el primer error de la tabla que case con err (errors.Is).
// Sin coincidencia responde 500 sin filtrar el detalle interno.
func SendMappedError(c *gin.Context, err error, table []ErrorStatus) {
	for _, m := range table {
		if errors.Is(err, m.Err) {
			SendError(c, m.Status, err.Error())
			return
		}
	}
	SendInternalServerError(c, "internal server error")
}

// --- Helpers específicos para errores comunes ---

func SendBadRequest(c *gin.Context, message string) {
	SendError(c, http.StatusBadRequest, message)
}

func SendNotFound(c *gin.Context, message string) {
	SendError(c, http.StatusNotFound, message)
}

func SendInternalServerError(c *gin.Context, message string) {
	SendError(c, http.StatusInternalServerError, message)
}
