package handlers

import (
	"context"
	"net/http"

	"github.com/navikt/keys2text-backend/pkg/memprobe"
	"github.com/navikt/keys2text-backend/pkg/service/core/transport"
)

type DisconnectProbe interface {
	Disconnect() memprobe.Sample
}

type UserHandler struct {
	probe DisconnectProbe
}

// Disconnect receives the beacon a page sends when it is closed or left. It
// requires no identity and does not touch the session.
func (h *UserHandler) Disconnect(_ context.Context, _ *http.Request, _ any) (*transport.Blank, error) {
	h.probe.Disconnect()

	return &transport.Blank{}, nil
}

func NewUserHandler(probe DisconnectProbe) *UserHandler {
	return &UserHandler{probe: probe}
}
