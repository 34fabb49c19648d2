package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// VoiceRelay proxies the browser's voice websocket to the realtime model
// upstream. Frames are forwarded verbatim in both directions by two
// concurrent loops; either side closing terminates both.
type VoiceRelay struct {
	upstreamURL string
	header      http.Header
	upgrader    websocket.Upgrader
	logger      zerolog.Logger
}

// NewVoiceRelay creates a relay to the given upstream websocket URL.
// header carries upstream credentials and may be nil.
func NewVoiceRelay(upstreamURL string, header http.Header, logger zerolog.Logger) *VoiceRelay {
	return &VoiceRelay{
		upstreamURL: upstreamURL,
		header:      header,
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:      logger,
	}
}

func (v *VoiceRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	client, err := v.upgrader.Upgrade(w, r, nil)
	if err != nil {
		v.logger.Warn().Err(err).Msg("voice: upgrade failed")
		return
	}
	defer client.Close()

	upstream, resp, err := websocket.DefaultDialer.DialContext(r.Context(), v.upstreamURL, v.header)
	if err != nil {
		v.logger.Error().Err(err).Str("upstream", v.upstreamURL).Msg("voice: upstream dial failed")
		client.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "upstream unavailable"))
		return
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer upstream.Close()

	v.logger.Info().Msg("voice: session started")

	errc := make(chan error, 2)
	go forward(client, upstream, errc)
	go forward(upstream, client, errc)

	// First loop to fail ends the session; deferred closes unblock the other.
	err = <-errc
	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		v.logger.Debug().Err(err).Msg("voice: session ended")
	} else {
		v.logger.Info().Msg("voice: session closed")
	}
}

func forward(src, dst *websocket.Conn, errc chan<- error) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			errc <- err
			return
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			errc <- err
			return
		}
	}
}
