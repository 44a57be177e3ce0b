package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/lizhen986988664/distributionMini/internal/model"
)

func TestLazyCardFate(t *testing.T) {
	tests := []struct {
		name       string
		card       *model.StarCard
		wantStatus model.StarCardStatus
		wantErr    error
	}{
		{
			name: "active card keeps status",
			card: &model.StarCard{
				ExpireTime:      time.Now().Add(24 * time.Hour),
				ReceiveCount:    3,
				MaxReceiveCount: 100,
			},
		},
		{
			name: "receive limit reached flips to used",
			card: &model.StarCard{
				ExpireTime:      time.Now().Add(24 * time.Hour),
				ReceiveCount:    100,
				MaxReceiveCount: 100,
			},
			wantStatus: model.StarCardStatusUsed,
			wantErr:    ErrCardExhausted,
		},
		{
			name: "past expiry flips to expired",
			card: &model.StarCard{
				ExpireTime:      time.Now().Add(-time.Minute),
				ReceiveCount:    3,
				MaxReceiveCount: 100,
			},
			wantStatus: model.StarCardStatusExpired,
			wantErr:    ErrCardExpired,
		},
		{
			name: "expiry wins over exhaustion",
			card: &model.StarCard{
				ExpireTime:      time.Now().Add(-time.Minute),
				ReceiveCount:    100,
				MaxReceiveCount: 100,
			},
			wantStatus: model.StarCardStatusExpired,
			wantErr:    ErrCardExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fate := lazyCardFate(tt.card)
			if tt.wantErr == nil {
				if fate != nil {
					t.Fatalf("fate = %+v, want nil", fate)
				}
				return
			}
			if fate == nil {
				t.Fatal("fate = nil, want terminal status")
			}
			if fate.status != tt.wantStatus {
				t.Errorf("status = %v, want %v", fate.status, tt.wantStatus)
			}
			if !errors.Is(fate.err, tt.wantErr) {
				t.Errorf("err = %v, want %v", fate.err, tt.wantErr)
			}
		})
	}
}
