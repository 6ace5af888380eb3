package services

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"bridge-backend/internal/config"
	"bridge-backend/internal/metrics"

	"gorm.io/gorm"
)

// MonitoringService samples relayer account balances and database health on a
// fixed interval and exports them as metrics. A relayer running dry on gas is
// the most common cause of stranded transfers, so low balances are also
// logged loudly.
type MonitoringService struct {
	db    *gorm.DB
	chain *ChainService
	keys  *RelayerKeyService

	interval     time.Duration
	lowWatermark *big.Int // wei

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitoringService creates the monitoring service
func NewMonitoringService(db *gorm.DB, chain *ChainService, keys *RelayerKeyService) *MonitoringService {
	// 0.1 native token.
	lowWatermark, _ := new(big.Int).SetString("100000000000000000", 10)
	return &MonitoringService{
		db:           db,
		chain:        chain,
		keys:         keys,
		interval:     60 * time.Second,
		lowWatermark: lowWatermark,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the sampling loop
func (s *MonitoringService) Start() {
	log.Printf("🚀 [Monitor] Starting monitoring service...")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.sample()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.sample()
			}
		}
	}()
}

// Stop terminates the sampling loop
func (s *MonitoringService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	log.Printf("🛑 [Monitor] Monitoring service stopped")
}

func (s *MonitoringService) sample() {
	s.sampleRelayerBalances()
	s.sampleDatabase()
}

func (s *MonitoringService) sampleRelayerBalances() {
	if config.AppConfig == nil {
		return
	}

	for name, network := range config.AppConfig.Networks {
		if !network.Enabled || !s.keys.HasKey(network.ChainID) {
			continue
		}

		address, err := s.keys.Address(network.ChainID)
		if err != nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		balance, err := s.chain.RelayerBalance(ctx, network.ChainID, address)
		cancel()
		if err != nil {
			log.Printf("⚠️ [Monitor] Failed to read relayer balance on %s: %v", name, err)
			continue
		}

		balanceFloat, _ := new(big.Float).SetInt(balance).Float64()
		metrics.RelayerBalance.WithLabelValues(
			fmt.Sprintf("%d", network.ChainID), address.Hex()).Set(balanceFloat)

		if balance.Cmp(s.lowWatermark) < 0 {
			log.Printf("🚨 [Monitor] Relayer balance LOW on %s: %s wei (relayer=%s)",
				name, balance.String(), address.Hex())
		}
	}
}

func (s *MonitoringService) sampleDatabase() {
	sqlDB, err := s.db.DB()
	if err != nil {
		log.Printf("❌ [Monitor] Database handle unavailable: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Printf("❌ [Monitor] Database ping failed: %v", err)
	}
}
