// Package api provides the HTTP control plane for midisched: the
// original file-conversion endpoints, plus scheduler lifecycle
// control, a Prometheus metrics endpoint, and a WebSocket event
// stream for live dispatch monitoring.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/beatforge/midisched/pkg/converter"
	"github.com/beatforge/midisched/pkg/converter/devices"
	"github.com/beatforge/midisched/pkg/scheduler"
)

// @title midisched API
// @version 1.0
// @description Control plane for the midisched real-time MIDI scheduler
// @host localhost:8080
// @BasePath /api/v1

// Server wires a running Scheduler into an HTTP control plane.
type Server struct {
	router *gin.Engine
	sched  *scheduler.Scheduler
	events *scheduler.BroadcastSink
}

// NewServer builds the router. events may be nil, in which case
// /ws/events responds 503; sched may be nil for a conversion-only
// deployment, in which case the /api/v1/scheduler group responds 503.
func NewServer(sched *scheduler.Scheduler, events *scheduler.BroadcastSink) *Server {
	s := &Server{router: gin.Default(), sched: sched, events: events}

	s.router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type", "Authorization"},
	}))
	s.router.Use(gzip.Gzip(gzip.DefaultCompression))

	s.router.GET("/health", healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/events", s.handleEvents)
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert/midi2seq", handleMIDIToSeq)
		v1.POST("/convert/seq2midi", handleSeqToMIDI)
		v1.POST("/convert/midi2syx", handleMIDIToSyx)
		v1.POST("/convert/syx2midi", handleSyxToMIDI)
		v1.POST("/convert/seq2syx", handleSeqToSyx)
		v1.POST("/convert/syx2seq", handleSyxToSeq)
		v1.GET("/formats", listFormats)
		v1.GET("/devices", listDevices)

		sch := v1.Group("/scheduler")
		{
			sch.GET("/status", s.handleStatus)
			sch.POST("/start", s.handleStart)
			sch.POST("/pause", s.handlePause)
			sch.POST("/resume", s.handleResume)
			sch.POST("/stop", s.handleStop)
			sch.POST("/tempo", s.handleChangeTempo)
			sch.POST("/shift", s.handleShiftBeats)
			sch.POST("/notes", s.handleAddNotes)
		}
	}

	return s
}

// Run starts the HTTP server on addr, blocking until it exits.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// healthCheck godoc
// @Summary Health check endpoint
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "midisched"})
}

// listFormats godoc
// @Summary List supported file formats and conversions
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{"midi", "seq", "syx"},
		"conversions": converter.GetSupportedConversions(),
	})
}

// listDevices godoc
// @Summary List supported devices
// @Produce json
// @Success 200 {object} map[string][]map[string]string
// @Router /api/v1/devices [get]
func listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"devices": []map[string]string{
			{"id": "td3", "name": "Behringer TD-3", "description": "TB-303 clone"},
		},
	})
}

func (s *Server) requireScheduler(c *gin.Context) bool {
	if s.sched == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no scheduler attached to this server"})
		return false
	}
	return true
}

// handleStatus godoc
// @Summary Scheduler status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/scheduler/status [get]
func (s *Server) handleStatus(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      s.sched.ID(),
		"running": s.sched.IsRunning(),
		"paused":  s.sched.IsPaused(),
		"tempo":   s.sched.GetTempo(),
	})
}

func (s *Server) handleStart(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	if err := s.sched.Start(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

func (s *Server) handlePause(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	s.sched.Pause()
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (s *Server) handleResume(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	s.sched.Resume()
	c.JSON(http.StatusOK, gin.H{"status": "resumed"})
}

func (s *Server) handleStop(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	s.sched.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

type tempoRequest struct {
	BPM float64 `json:"bpm" binding:"required"`
}

func (s *Server) handleChangeTempo(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	var req tempoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.sched.ChangeTempo(req.BPM); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tempo": req.BPM})
}

type shiftRequest struct {
	OffsetTicks int64 `json:"offset_ticks" binding:"required"`
}

func (s *Server) handleShiftBeats(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	var req shiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.sched.ShiftBeats(scheduler.Tick(req.OffsetTicks))
	c.JSON(http.StatusOK, gin.H{"status": "shifted"})
}

type noteRequest struct {
	Note          uint8   `json:"note"`
	Velocity      uint8   `json:"velocity"`
	Channel       uint8   `json:"channel"`
	Duration      float64 `json:"duration_ms_at_60bpm"`
	Division      float64 `json:"division"`
	TempoBPM      float64 `json:"tempo_bpm"`
	ScheduledTick int64   `json:"scheduled_tick"`
}

func (s *Server) handleAddNotes(c *gin.Context) {
	if !s.requireScheduler(c) {
		return
	}
	var reqs []noteRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	notes := make([]scheduler.NoteDescriptor, len(reqs))
	for i, r := range reqs {
		notes[i] = scheduler.NoteDescriptor{
			Division:      r.Division,
			Duration:      scheduler.Beat(r.Duration),
			Base:          scheduler.RawEvent{Kind: scheduler.NoteOn, Channel: r.Channel, Note: r.Note, Velocity: r.Velocity},
			TempoBPM:      r.TempoBPM,
			ScheduledTick: scheduler.Tick(r.ScheduledTick),
		}
	}

	if err := s.sched.AddNotes(notes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"admitted": len(notes)})
}

// handleEvents streams every emitted RawEvent as a JSON text frame
// over a WebSocket, for a live dispatch monitor.
func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no event broadcaster attached to this server"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionDisabled,
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ch := s.events.Subscribe()
	defer s.events.Unsubscribe(ch)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := writeEvent(writeCtx, conn, ev)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev scheduler.RawEvent) error {
	payload := fmt.Sprintf(`{"kind":%d,"channel":%d,"note":%d,"velocity":%d,"deadline":%d}`,
		ev.Kind, ev.Channel, ev.Note, ev.Velocity, ev.Deadline)
	return conn.Write(ctx, websocket.MessageText, []byte(payload))
}

// handleMIDIToSeq godoc
// @Summary Convert MIDI to .seq
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "MIDI file to convert"
// @Param device query string false "Target device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2seq [post]
func handleMIDIToSeq(c *gin.Context) { handleConversion(c, "midi", "seq") }

// handleSeqToMIDI godoc
// @Summary Convert .seq to MIDI
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true ".seq file to convert"
// @Param device query string false "Source device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/seq2midi [post]
func handleSeqToMIDI(c *gin.Context) { handleConversion(c, "seq", "midi") }

// handleMIDIToSyx godoc
// @Summary Convert MIDI to .syx
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true "MIDI file to convert"
// @Param device query string false "Target device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/midi2syx [post]
func handleMIDIToSyx(c *gin.Context) { handleConversion(c, "midi", "syx") }

// handleSyxToMIDI godoc
// @Summary Convert .syx to MIDI
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true ".syx file to convert"
// @Param device query string false "Source device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/syx2midi [post]
func handleSyxToMIDI(c *gin.Context) { handleConversion(c, "syx", "midi") }

// handleSeqToSyx godoc
// @Summary Convert .seq to .syx
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true ".seq file to convert"
// @Param device query string false "Device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/seq2syx [post]
func handleSeqToSyx(c *gin.Context) { handleConversion(c, "seq", "syx") }

// handleSyxToSeq godoc
// @Summary Convert .syx to .seq
// @Accept multipart/form-data
// @Produce application/octet-stream
// @Param file formData file true ".syx file to convert"
// @Param device query string false "Device (default: td3)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/convert/syx2seq [post]
func handleSyxToSeq(c *gin.Context) { handleConversion(c, "syx", "seq") }

func handleConversion(c *gin.Context, fromFormat, toFormat string) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}

	deviceName := c.DefaultQuery("device", "td3")
	var device converter.Device
	switch deviceName {
	case "td3", "td-3":
		device = devices.NewTD3()
	default:
		device = devices.NewTD3()
	}

	conv := converter.New(device)

	var result []byte
	var outputExt string

	switch fromFormat + "2" + toFormat {
	case "midi2seq":
		result, err = conv.MIDIToSeq(data)
		outputExt = ".seq"
	case "seq2midi":
		result, err = conv.SeqToMIDI(data)
		outputExt = ".mid"
	case "midi2syx":
		result, err = conv.MIDIToSyx(data)
		outputExt = ".syx"
	case "syx2midi":
		result, err = conv.SyxToMIDI(data)
		outputExt = ".mid"
	case "seq2syx":
		result, err = conv.SeqToSyx(data)
		outputExt = ".syx"
	case "syx2seq":
		result, err = conv.SyxToSeq(data)
		outputExt = ".seq"
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported conversion"})
		return
	}

	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	outputName := header.Filename
	if len(outputName) > 4 {
		outputName = outputName[:len(outputName)-4] + outputExt
	} else {
		outputName = "converted" + outputExt
	}

	var contentType string
	switch toFormat {
	case "midi":
		contentType = "audio/midi"
	default:
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Data(http.StatusOK, contentType, result)
}
