package wallet

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

func TestNewBalanceAdapter(t *testing.T) {
	client, err := NewClient("https://polygon-rpc.com", zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	addr := common.HexToAddress("0x1234567890123456789012345678901234567890")
	adapter := NewBalanceAdapter(client, addr)

	if adapter == nil {
		t.Fatal("NewBalanceAdapter() returned nil")
	}
	if adapter.client != client {
		t.Error("expected adapter to wrap the given client")
	}
	if adapter.address != addr {
		t.Error("expected adapter to bind the given address")
	}
}
