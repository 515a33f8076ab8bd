package station

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"chargeset/internal"
	"chargeset/ocpp"
	"chargeset/types"
)

// Authorizer resolves an identity token into a verdict with an optional
// session context. The websocket client implements it against the central
// system.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (*ocpp.AuthorizeResponse, error)
}

// Pipeline runs the full device-driven session flow: authorize a token,
// validate the delivered session context and execute its schedule. Failures
// before charging starts are echoed back to the originating device.
type Pipeline struct {
	client Authorizer
	runner *Runner
	logger internal.LogHandler
}

func NewPipeline(client Authorizer, runner *Runner, logger internal.LogHandler) *Pipeline {
	return &Pipeline{client: client, runner: runner, logger: logger}
}

func (p *Pipeline) HandleToken(ctx context.Context, token string, device io.Writer) {
	response, err := p.client.Authorize(ctx, token)
	if err != nil {
		p.logger.Error("authorize", err)
		p.echoError(device, err.Error())
		return
	}
	if response.IdTokenInfo == nil {
		p.logger.Warn("authorize response without token info")
		p.echoError(device, "authorization failed")
		return
	}
	status := response.IdTokenInfo.Status
	if status != types.AuthorizationStatusAccepted {
		p.logger.FeatureEvent(ocpp.AuthorizeFeatureName, token, fmt.Sprintf("rejected: %s", status))
		p.echoError(device, fmt.Sprintf("authorization rejected: %s", status))
		return
	}
	sc := response.Context
	if err = sc.Validate(); err != nil {
		// accepted without a usable session context is a backend data defect
		p.logger.Error("accepted token without session context", err)
		p.echoError(device, err.Error())
		return
	}
	if err = p.runner.Run(ctx, sc); err != nil {
		p.logger.Error(fmt.Sprintf("session for reservation %s aborted", sc.ReservationId), err)
	}
}

func (p *Pipeline) echoError(device io.Writer, message string) {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return
	}
	if _, err = device.Write(append(payload, '\n')); err != nil {
		p.logger.Debug(fmt.Sprintf("echo error to device: %v", err))
	}
}
