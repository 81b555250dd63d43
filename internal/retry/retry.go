// Package retry concentra a política de novas tentativas aplicada na
// fronteira de lote/item do pipeline, no lugar de try/catch espalhados.
package retry

import (
	"context"
	"time"
)

// Policy define o número máximo de tentativas e o intervalo base entre elas.
// O intervalo cresce linearmente: backoff, 2*backoff, 3*backoff...
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Default é a política usada nas chamadas à API quando nenhuma outra é
// configurada.
var Default = Policy{MaxAttempts: 2, Backoff: time.Second}

// Do executa op até obter sucesso ou esgotar as tentativas, respeitando o
// cancelamento do contexto durante as esperas. Retorna o último erro.
func (p Policy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		wait := p.Backoff * time.Duration(attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
