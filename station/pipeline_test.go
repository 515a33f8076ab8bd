package station

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"chargeset/ocpp"
	"chargeset/types"
)

type fakeAuthorizer struct {
	response *ocpp.AuthorizeResponse
	err      error
}

func (a *fakeAuthorizer) Authorize(ctx context.Context, token string) (*ocpp.AuthorizeResponse, error) {
	return a.response, a.err
}

func TestPipelineRejectedTokenEchoesError(t *testing.T) {
	response := ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(types.AuthorizationStatusExpired))
	authorizer := &fakeAuthorizer{response: response}
	sink := &recordingSink{}
	pipeline := NewPipeline(authorizer, NewRunner(sink, fakeClock{}, nopLogger()), nopLogger())

	var device bytes.Buffer
	pipeline.HandleToken(context.Background(), "tok-A", &device)

	echoed := device.String()
	if !strings.HasPrefix(echoed, `{"error":`) || !strings.HasSuffix(echoed, "\n") {
		t.Errorf("expected newline-terminated JSON error, got %q", echoed)
	}
	if !strings.Contains(echoed, string(types.AuthorizationStatusExpired)) {
		t.Errorf("echo should name the verdict, got %q", echoed)
	}
	if len(sink.events) != 0 {
		t.Errorf("rejected token must not start a session, got %v", sink.events)
	}
}

func TestPipelineAcceptedWithoutContextEchoesError(t *testing.T) {
	response := ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(types.AuthorizationStatusAccepted))
	authorizer := &fakeAuthorizer{response: response}
	sink := &recordingSink{}
	pipeline := NewPipeline(authorizer, NewRunner(sink, fakeClock{}, nopLogger()), nopLogger())

	var device bytes.Buffer
	pipeline.HandleToken(context.Background(), "tok-A", &device)

	if !strings.Contains(device.String(), "error") {
		t.Errorf("missing session context should be echoed, got %q", device.String())
	}
	if len(sink.events) != 0 {
		t.Errorf("no session should run without a context bundle, got %v", sink.events)
	}
}

func TestPipelineAcceptedRunsSchedule(t *testing.T) {
	response := ocpp.NewAuthorizeResponse(types.NewIdTokenInfo(types.AuthorizationStatusAccepted))
	response.Context = sessionContext([]types.ChargingSchedulePeriod{
		{StartPeriod: 0, Limit: 30000, UseESS: false},
		{StartPeriod: 24, Limit: 0, UseESS: false},
	})
	authorizer := &fakeAuthorizer{response: response}
	sink := &recordingSink{}
	pipeline := NewPipeline(authorizer, NewRunner(sink, fakeClock{}, nopLogger()), nopLogger())

	var device bytes.Buffer
	pipeline.HandleToken(context.Background(), "tok-A", &device)

	if device.Len() != 0 {
		t.Errorf("successful session should not echo errors, got %q", device.String())
	}
	if len(sink.events) < 2 || sink.events[0].kind != "started" || sink.events[len(sink.events)-1].kind != "ended" {
		t.Fatalf("expected started..ended, got %v", sink.events)
	}
}
