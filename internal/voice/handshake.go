package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/DragonOfMath/discord.io/internal/codec"
	"github.com/gorilla/websocket"
)

var ErrNoAddress = errors.New("voice host has no ipv4 address")

func (s *Session) handshake() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.connect(ctx)
	if err != nil && ctx.Err() != nil {
		err = ErrClosed
	}
	s.finish(err)
	if err != nil {
		s.logger.Error("voice handshake failed", "error", err)
		_ = s.Close()
	}
}

func (s *Session) connect(ctx context.Context) error {
	s.mu.Lock()
	host := hostOf(s.endpoint)
	identify := codec.VoiceIdentify{
		ServerID:  s.guildID,
		UserID:    s.userID,
		SessionID: s.sessionID,
		Token:     s.token,
	}
	s.mu.Unlock()

	s.setState(StateAwaitingWSOpen)
	ip, err := s.lookup(ctx, host)
	if err != nil {
		return err
	}

	ws, _, err := s.dialer.DialContext(ctx, s.controlURL(host), nil)
	if err != nil {
		return fmt.Errorf("failed to dial voice host %s: %w", host, err)
	}
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = ws.Close()
		return ErrClosed
	}
	s.ws = ws
	s.mu.Unlock()
	go s.read(ws)

	if err := s.send(codec.VoiceOpIdentify, identify); err != nil {
		return fmt.Errorf("failed to identify voice session: %w", err)
	}
	s.setState(StateAwaitingReady)

	var ready codec.VoiceReady
	select {
	case ready = <-s.readyC:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	s.ssrc = ready.SSRC
	s.mu.Unlock()
	s.startHeartbeat(codec.VoiceInterval(ready.HeartbeatInterval))

	udp, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: ready.Port})
	if err != nil {
		return fmt.Errorf("failed to open voice udp socket: %w", err)
	}
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = udp.Close()
		return ErrClosed
	}
	s.udp = udp
	s.mu.Unlock()
	go s.keepAlive(udp)

	if s.audio {
		if err := s.negotiate(ctx, udp, ready.SSRC); err != nil {
			return err
		}
	}

	go s.readUDP(udp)
	s.setState(StateReady)
	s.logger.Info("voice session ready", "channel_id", s.ChannelID(), "ssrc", ready.SSRC)
	return nil
}

func (s *Session) lookup(ctx context.Context, host string) (net.IP, error) {
	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve voice host %s: %w", host, err)
	}
	for _, addr := range addrs {
		if ip := net.ParseIP(addr).To4(); ip != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAddress, host)
}

// negotiate runs IP discovery, selects the protocol and waits for the key.
func (s *Session) negotiate(ctx context.Context, udp *net.UDPConn, ssrc uint32) error {
	s.setState(StateDiscovering)
	address, port, err := s.discover(udp, ssrc)
	if err != nil {
		return err
	}
	if err := s.send(codec.VoiceOpSelectProtocol, codec.NewSelectProtocol(address, port)); err != nil {
		return fmt.Errorf("failed to select protocol: %w", err)
	}

	s.setState(StateAwaitingSessionDescription)
	var desc codec.SessionDescription
	select {
	case desc = <-s.descC:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	s.mode = desc.Mode
	key := desc.SecretKey
	s.key = &key
	s.mu.Unlock()
	return nil
}

func (s *Session) discover(udp *net.UDPConn, ssrc uint32) (string, int, error) {
	if _, err := udp.Write(codec.DiscoveryRequest(ssrc)); err != nil {
		return "", 0, fmt.Errorf("failed to send discovery packet: %w", err)
	}
	if err := udp.SetReadDeadline(time.Now().Add(s.discoveryTimeout)); err != nil {
		return "", 0, err
	}
	defer udp.SetReadDeadline(time.Time{})

	buf := make([]byte, codec.DiscoveryPacketSize)
	for {
		n, err := udp.Read(buf)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read discovery reply: %w", err)
		}
		if n == codec.KeepAliveSize {
			continue
		}
		address, port, err := codec.ParseDiscoveryResponse(buf[:n])
		if err != nil {
			return "", 0, err
		}
		return address, port, nil
	}
}

func (s *Session) read(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.mu.Lock()
				s.closeCode = ce.Code
				s.closeText = codec.VoiceCloseReason(ce.Code, ce.Text)
				s.mu.Unlock()
			}
			_ = s.Close()
			return
		}
		f, err := codec.DecodeVoiceFrame(data)
		if err != nil {
			s.logger.Warn("dropping malformed voice frame", "error", err)
			continue
		}
		s.handle(f)
	}
}

func (s *Session) handle(f codec.VoiceFrame) {
	s.logger.Debug("voice frame", "op", f.Op)
	switch f.Op {
	case codec.VoiceOpReady:
		var ready codec.VoiceReady
		if err := json.Unmarshal(f.D, &ready); err != nil {
			s.logger.Warn("malformed voice ready", "error", err)
			return
		}
		select {
		case s.readyC <- ready:
		default:
		}
	case codec.VoiceOpHello:
		var hello codec.VoiceHello
		if err := json.Unmarshal(f.D, &hello); err == nil {
			s.startHeartbeat(codec.VoiceInterval(hello.HeartbeatInterval))
		}
	case codec.VoiceOpSessionDescription:
		var desc codec.SessionDescription
		if err := json.Unmarshal(f.D, &desc); err != nil {
			s.logger.Warn("malformed session description", "error", err)
			return
		}
		select {
		case s.descC <- desc:
		default:
		}
	case codec.VoiceOpSpeaking:
		var sp codec.Speaking
		if err := json.Unmarshal(f.D, &sp); err != nil {
			return
		}
		s.mu.Lock()
		s.speakers[sp.SSRC] = sp.UserID
		s.mu.Unlock()
		s.bus.Emit(EventSpeaking, SpeakingEvent{UserID: sp.UserID, SSRC: sp.SSRC, Speaking: bool(sp.Speaking)})
	case codec.VoiceOpClientDisconnect:
		var cd codec.ClientDisconnect
		if err := json.Unmarshal(f.D, &cd); err != nil {
			return
		}
		s.mu.Lock()
		for ssrc, user := range s.speakers {
			if user == cd.UserID {
				delete(s.speakers, ssrc)
			}
		}
		s.mu.Unlock()
	}
}

func (s *Session) startHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.beating {
		s.mu.Unlock()
		return
	}
	s.beating = true
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.send(codec.VoiceOpHeartbeat, nil); err != nil {
					s.logger.Warn("failed to send voice heartbeat", "error", err)
				}
			}
		}
	}()
}

func (s *Session) keepAlive(udp *net.UDPConn) {
	ticker := time.NewTicker(s.keepAliveInterval)
	defer ticker.Stop()
	var counter uint64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			counter = codec.NextKeepAlive(counter)
			_, _ = udp.Write(codec.KeepAlivePacket(counter))
		}
	}
}

func (s *Session) readUDP(udp *net.UDPConn) {
	buf := make([]byte, 2048)
	for {
		n, err := udp.Read(buf)
		if err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		s.mu.Lock()
		fn := s.onPacket
		s.mu.Unlock()
		if fn != nil {
			fn(append([]byte(nil), buf[:n]...))
		}
	}
}
