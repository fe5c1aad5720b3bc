package app

import (
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/payhere"
	"github.com/vladislavdragonenkov/storefront/internal/service/settlement"
	"github.com/vladislavdragonenkov/storefront/internal/service/stock"
)

// createOrchestrator создаёт settlement orchestrator с или без Kafka
// в зависимости от наличия kafka producer.
func createOrchestrator(
	deps *Dependencies,
	stockSvc *stock.Service,
	gateway *payhere.Adapter,
	kafkaProducer *kafka.Producer,
) *settlement.Orchestrator {
	if kafkaProducer != nil {
		return settlement.NewOrchestratorWithKafka(
			deps.Inventory,
			stockSvc,
			deps.Orders,
			deps.Notifications,
			gateway,
			kafkaProducer,
			deps.Logger,
		)
	}

	return settlement.NewOrchestrator(
		deps.Inventory,
		stockSvc,
		deps.Orders,
		deps.Notifications,
		gateway,
		deps.Logger,
	)
}
