package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"go.trai.ch/ybt/internal/adapters/telemetry"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestLogBridge_OnEnd(t *testing.T) {
	tests := []struct {
		name   string
		run    func(tracer ports.Tracer)
		expect func(log *mocks.MockLogger)
	}{
		{
			name: "success",
			run: func(tracer ports.Tracer) {
				_, span := tracer.Start(context.Background(), "lib")
				span.End()
			},
			expect: func(log *mocks.MockLogger) {
				log.EXPECT().Debug("span finished", "span", "lib", "duration", gomock.Any())
			},
		},
		{
			name: "cached",
			run: func(tracer ports.Tracer) {
				_, span := tracer.Start(context.Background(), "lib")
				span.SetAttribute(ports.AttrCached, true)
				span.End()
			},
			expect: func(log *mocks.MockLogger) {
				log.EXPECT().Debug("span finished", "span", "lib", "duration", gomock.Any(), "cached", true)
			},
		},
		{
			name: "failure",
			run: func(tracer ports.Tracer) {
				_, span := tracer.Start(context.Background(), "app")
				span.RecordError(errors.New("exit status 2"))
				span.End()
			},
			expect: func(log *mocks.MockLogger) {
				log.EXPECT().Error(gomock.Cond(func(err error) bool {
					return err.Error() == "app: exit status 2"
				}))
			},
		},
		{
			name: "internal spans are dropped",
			run: func(tracer ports.Tracer) {
				_, span := tracer.Start(context.Background(), "hydrate", ports.WithInternal())
				span.End()
			},
			expect: func(*mocks.MockLogger) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			log := mocks.NewMockLogger(ctrl)
			tt.expect(log)

			tracer := telemetry.NewOTelTracer("test", telemetry.NewLogBridge(log))
			tt.run(tracer)
			_ = tracer.Shutdown(context.Background())
		})
	}
}
