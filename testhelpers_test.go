//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/safar-travel/service-booking/internal/adapter"
	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/consumer"
	"github.com/safar-travel/service-booking/internal/events"
	"github.com/safar-travel/service-booking/internal/kafka"
	"github.com/safar-travel/service-booking/internal/repository"
	"github.com/safar-travel/service-booking/internal/saga"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Cart            *application.CartService
	Orders          *application.OrderService
	Payments        *application.PaymentService
	Promos          *application.PromoService
	Consumer        *consumer.GatewayEventConsumer
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_booking sslmode=disable", pgHost, pgPort.Port())

	// Poll until GORM can actually connect and ping. TranslateError is on so
	// unique violations surface as gorm.ErrDuplicatedKey, same as production.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
		if err != nil {
			return false
		}
		sqlDB, err := db.DB()
		if err != nil {
			return false
		}
		return sqlDB.Ping() == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, db.AutoMigrate(
		&repository.QuoteModel{},
		&repository.QuoteItemModel{},
		&repository.PromoCodeModel{},
		&repository.PromoUsageModel{},
		&repository.OrderModel{},
		&repository.SubBookingModel{},
		&repository.PaymentModel{},
		&repository.PaymentMethodConfigModel{},
		&repository.BankAccountModel{},
	))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicGatewayEvents, events.TopicOrderEvents, events.TopicPaymentEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires up the full booking service stack.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	taxRate := decimal.NewFromFloat(0.15)

	quoteRepo := repository.NewGormQuoteRepository(db)
	promoRepo := repository.NewGormPromoRepository(db)
	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	catalogRepo := repository.NewGormCatalogRepository(db)

	producer := kafka.NewProducer(brokers, logger)
	gateway := adapter.NewMockGatewayAdapter(logger)
	sagaSvc := saga.NewOrderSagaService(orderRepo, promoRepo, quoteRepo, logger)

	promoSvc := application.NewPromoService(promoRepo, orderRepo, logger)
	cartSvc := application.NewCartService(quoteRepo, promoSvc, taxRate, "SAR", logger)
	orderSvc := application.NewOrderService(orderRepo, quoteRepo, promoRepo, promoSvc, sagaSvc, producer, taxRate, "SAR", logger)
	paymentSvc := application.NewPaymentService(paymentRepo, catalogRepo, orderRepo, gateway, producer, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	gatewayConsumer := consumer.NewGatewayEventConsumer(brokers, groupID, paymentSvc, logger)

	return &bookingStack{
		Cart:            cartSvc,
		Orders:          orderSvc,
		Payments:        paymentSvc,
		Promos:          promoSvc,
		Consumer:        gatewayConsumer,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// seedPromoCode creates an active percentage promo code through the service.
func seedPromoCode(t *testing.T, stack *bookingStack, code string, value, maxDiscount int64, perUserLimit int) uuid.UUID {
	t.Helper()
	dto, err := stack.Promos.CreatePromo(context.Background(), uuid.New(), application.CreatePromoRequest{
		Code:              code,
		Name:              code,
		DiscountType:      "percentage",
		Value:             decimal.NewFromInt(value),
		MaxDiscountAmount: decimal.NewFromInt(maxDiscount),
		PerUserLimit:      perUserLimit,
		ValidFrom:         time.Now().Add(-time.Hour),
		ValidUntil:        time.Now().Add(24 * time.Hour),
	})
	require.NoError(t, err, "failed to seed promo code")
	return dto.ID
}

// createTestOrder creates an order directly from items.
func createTestOrder(t *testing.T, stack *bookingStack, userID uuid.UUID, price int64, promoCode string) *application.OrderDTO {
	t.Helper()
	dto, err := stack.Orders.CreateOrder(context.Background(), userID, application.CreateOrderRequest{
		Items: []application.OrderItemRequest{{
			ServiceType: "flight",
			ServiceName: "Riyadh to Jeddah",
			Price:       decimal.NewFromInt(price),
		}},
		PromoCode:     promoCode,
		PaymentMethod: "card",
	})
	require.NoError(t, err, "failed to create order")
	return dto
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForPaymentStatus polls the payments table until the status matches.
func waitForPaymentStatus(t *testing.T, db *gorm.DB, paymentID uuid.UUID, expectedStatus string, timeout time.Duration) repository.PaymentModel {
	t.Helper()
	var result repository.PaymentModel
	require.Eventually(t, func() bool {
		var model repository.PaymentModel
		if err := db.Where("id = ?", paymentID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "payment did not transition to %s", expectedStatus)
	return result
}

// waitForOrderStatus polls the orders table until the status matches.
func waitForOrderStatus(t *testing.T, db *gorm.DB, orderID uuid.UUID, expectedStatus string, timeout time.Duration) repository.OrderModel {
	t.Helper()
	var result repository.OrderModel
	require.Eventually(t, func() bool {
		var model repository.OrderModel
		if err := db.Where("id = ?", orderID).First(&model).Error; err != nil {
			return false
		}
		if model.Status == expectedStatus {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "order did not transition to %s", expectedStatus)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
