package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	DefaultExchange = "funds_alerts"

	debitRoutingKey  = "funds.debit"
	creditRoutingKey = "funds.credit"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// alertEvent is the JSON payload published per balance alert.
type alertEvent struct {
	OwnerID       string    `json:"owner_id"`
	AccountNumber string    `json:"account_number"`
	Direction     string    `json:"direction"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
	Reference     string    `json:"reference"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RabbitPublisher publishes balance alerts to a durable topic exchange. A
// channel closed by the broker is reopened on the next alert.
type RabbitPublisher struct {
	exchange string
	conn     *amqp.Connection

	mu       sync.Mutex
	ch       channel
	declared bool
	reopen   func() (channel, error)
}

// Dial connects to the broker at amqpURL.
func Dial(amqpURL, exchange string) (*RabbitPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := dialBroker(cleanURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	p := newRabbitPublisher(ch, exchange)
	p.conn = conn
	// Runs with p.mu held.
	p.reopen = func() (channel, error) {
		if p.conn == nil || p.conn.IsClosed() {
			conn, err := dialBroker(cleanURL)
			if err != nil {
				return nil, err
			}
			p.conn = conn
		}
		ch, err := p.conn.Channel()
		if err != nil {
			return nil, fmt.Errorf("open amqp channel: %w", err)
		}
		return ch, nil
	}
	return p, nil
}

func dialBroker(amqpURL string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(amqpURL, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return conn, nil
}

func newRabbitPublisher(ch channel, exchange string) *RabbitPublisher {
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}
	return &RabbitPublisher{exchange: exchange, ch: ch}
}

// Notify publishes alert with a routing key derived from its direction.
func (p *RabbitPublisher) Notify(ctx context.Context, alert models.BalanceAlert) error {
	routingKey, err := routingKeyFor(alert.Direction)
	if err != nil {
		return err
	}
	body, err := json.Marshal(alertEvent{
		OwnerID:       alert.OwnerID.String(),
		AccountNumber: alert.AccountNumber,
		Direction:     string(alert.Direction),
		Amount:        domain.FormatAmount(alert.Amount),
		Balance:       domain.FormatAmount(alert.Balance),
		Reference:     alert.Reference,
		OccurredAt:    alert.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal balance alert: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    alert.Reference + "." + routingKey,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publish(ctx, routingKey, msg)
	if errors.Is(err, amqp.ErrClosed) && p.reopen != nil {
		ch, rerr := p.reopen()
		if rerr != nil {
			return fmt.Errorf("publish %s: %w", routingKey, rerr)
		}
		_ = p.ch.Close()
		p.ch = ch
		p.declared = false
		zap.L().Info("amqp channel reopened", zap.String("exchange", p.exchange))
		err = p.publish(ctx, routingKey, msg)
	}
	return err
}

func (p *RabbitPublisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if !p.declared {
		if err := p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
		}
		p.declared = true
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func routingKeyFor(direction domain.Direction) (string, error) {
	switch direction {
	case domain.DirectionDebit:
		return debitRoutingKey, nil
	case domain.DirectionCredit:
		return creditRoutingKey, nil
	default:
		return "", fmt.Errorf("unknown alert direction %q", direction)
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse AMQP_URL: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// LogNotifier is the fallback used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.L()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, alert models.BalanceAlert) error {
	n.logger.Info("balance alert",
		zap.String("account_number", alert.AccountNumber),
		zap.String("direction", string(alert.Direction)),
		zap.String("amount", domain.FormatAmount(alert.Amount)),
		zap.String("balance", domain.FormatAmount(alert.Balance)),
		zap.String("reference", alert.Reference))
	return nil
}
