package mocks

import (
	"context"
	"fmt"

	"github.com/railguard/railguard/pkg/types"
	"github.com/stretchr/testify/mock"
)

type Client struct {
	mock.Mock
}

func (m *Client) ResolveConfigID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Client) Classify(ctx context.Context, messages []types.Message) ([]byte, error) {
	args := m.Called(ctx, messages)
	payload, ok := args.Get(0).([]byte)
	if !ok && args.Get(0) != nil {
		return nil, fmt.Errorf("expected []byte, got %T", args.Get(0))
	}
	return payload, args.Error(1)
}
