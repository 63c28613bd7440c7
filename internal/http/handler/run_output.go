package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"testsmith.app/testsmith/internal/queue"
)

// RunOutputHandler serves live generation output over SSE by tailing the
// run's Redis output stream.
type RunOutputHandler struct {
	redis        *redis.Client
	outputPrefix string
}

func NewRunOutputHandler(redisClient *redis.Client, outputPrefix string) *RunOutputHandler {
	return &RunOutputHandler{
		redis:        redisClient,
		outputPrefix: outputPrefix,
	}
}

func (h *RunOutputHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "redis not configured"})
		return
	}

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
		return
	}

	stream := queue.RunStreamName(h.outputPrefix, runID)
	lastID := c.Query("last_id")
	if lastID == "" {
		// "0" instead of "$": replay tokens published before the client
		// connected, since runs can finish fast.
		lastID = "0"
	}

	setSSEHeaders(c.Writer)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	sseWrite(c.Writer, "ping", "ready")
	flusher.Flush()

	clientClosed := c.Request.Context().Done()

	for {
		select {
		case <-clientClosed:
			return
		default:
		}

		res, err := h.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Block:   25 * time.Second,
			Count:   100,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				sseWrite(c.Writer, "ping", time.Now().UTC().Format(time.RFC3339Nano))
				flusher.Flush()
				continue
			}
			if ctx.Err() != nil {
				return
			}
			sseWrite(c.Writer, "error", map[string]string{"error": err.Error()})
			flusher.Flush()
			continue
		}

		for _, streamRes := range res {
			for _, msg := range streamRes.Messages {
				lastID = msg.ID
				if done := h.writeMessage(c.Writer, msg); done {
					flusher.Flush()
					return
				}
			}
		}
		flusher.Flush()
	}
}

// writeMessage renders one stream entry as an SSE event. Returns true when
// the run reached a terminal event and the stream should close.
func (h *RunOutputHandler) writeMessage(w http.ResponseWriter, msg redis.XMessage) bool {
	if token, ok := msg.Values[queue.OutputFieldToken]; ok {
		sseWrite(w, "token", fmt.Sprint(token))
		return false
	}

	event, ok := msg.Values[queue.OutputFieldEvent]
	if !ok {
		return false
	}

	switch fmt.Sprint(event) {
	case queue.EventDone:
		sseWrite(w, "done", "")
		return true
	case queue.EventFailed:
		errMsg := ""
		if raw, ok := msg.Values["error"]; ok {
			errMsg = fmt.Sprint(raw)
		}
		sseWrite(w, "failed", map[string]string{"error": errMsg})
		return true
	default:
		return false
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
}

func sseWrite(w http.ResponseWriter, event string, data any) {
	payload := marshalPayload(data)
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
}

func marshalPayload(data any) string {
	switch payload := data.(type) {
	case string:
		return payload
	case []byte:
		return string(payload)
	default:
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Sprintf("%v", data)
		}
		return string(bytes)
	}
}
