// Package api exposes the decode engine over HTTP: POST a binary body,
// get the decoded tree back as JSON.
package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/binspect/internal/inspect"
	"github.com/samcharles93/binspect/pkg/bindec"
)

// maxBodyBytes caps request bodies. Inspection targets bigger than this
// belong on the CLI, not in an HTTP round trip.
const maxBodyBytes = 64 << 20

type Server struct {
	clock func() time.Time
}

func NewServer() *Server {
	return &Server{clock: time.Now}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/inspect", s.handleInspect)
	e.GET("/v1/formats", s.handleFormats)
}

// InspectResponse is the decode result for one submitted input. On a decode
// failure Tree holds whatever was decoded before the error.
type InspectResponse struct {
	ID        string      `json:"id"`
	CreatedAt int64       `json:"created_at"`
	Format    string      `json:"format"`
	Size      int         `json:"size"`
	Tree      *bindec.Map `json:"tree"`
	Error     string      `json:"error,omitempty"`
}

// FormatInfo describes one registered format driver.
type FormatInfo struct {
	Name  string `json:"name"`
	Order string `json:"byte_order"`
}

func (s *Server) handleInspect(c *echo.Context) error {
	req := c.Request()
	data, err := io.ReadAll(http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes))
	if err != nil {
		return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body too large")
	}
	if len(data) == 0 {
		return writeBadRequest(c, "empty request body")
	}

	dumpLimit := 0
	if raw := c.QueryParam("dump_limit"); raw != "" {
		dumpLimit, err = strconv.Atoi(raw)
		if err != nil || dumpLimit < 0 {
			return writeBadRequest(c, "dump_limit must be a non-negative integer")
		}
	}

	sink := bindec.NewTreeSink()
	drv, err := inspect.Run(data, c.QueryParam("format"), sink, dumpLimit)
	if err != nil && drv.Name == "" {
		// No driver was selected: unknown format name or unrecognized signature.
		return writeBadRequest(c, err.Error())
	}

	resp := InspectResponse{
		ID:        "insp_" + uuid.NewString(),
		CreatedAt: s.clock().Unix(),
		Format:    drv.Name,
		Size:      len(data),
		Tree:      sink.Root(),
	}
	if err != nil {
		resp.Error = err.Error()
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFormats(c *echo.Context) error {
	drivers := inspect.Drivers()
	formats := make([]FormatInfo, 0, len(drivers))
	for _, d := range drivers {
		formats = append(formats, FormatInfo{Name: d.Name, Order: d.Order.String()})
	}
	return c.JSON(http.StatusOK, map[string]any{"formats": formats})
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": map[string]string{
			"type":    errType,
			"message": msg,
		},
	})
}
