// Package tracking answers per-order lookups from the latest kitchen board.
package tracking

import (
	"fmt"
	"strings"

	"github.com/YelzhanWeb/kitchen-sync/internal/adapter/logger"
	"github.com/YelzhanWeb/kitchen-sync/internal/domain"
	"github.com/YelzhanWeb/kitchen-sync/internal/interfaces"
)

type Service struct {
	board  interfaces.BoardService
	logger logger.Logger
}

func NewService(board interfaces.BoardService, logger logger.Logger) *Service {
	return &Service{board: board, logger: logger}
}

// TicketByNumber finds an active order's ticket. Order numbers are matched
// case-insensitively.
func (s *Service) TicketByNumber(orderNumber string) (*domain.Ticket, error) {
	want := strings.TrimSpace(orderNumber)
	if want == "" {
		return nil, fmt.Errorf("%w: empty order number", domain.ErrOrderNotFound)
	}

	board := s.board.Latest()
	for i := range board.Tickets {
		if strings.EqualFold(board.Tickets[i].OrderNumber, want) {
			t := board.Tickets[i]
			return &t, nil
		}
	}

	s.logger.Debug("ticket_not_found", fmt.Sprintf("No active ticket for %s", want), "", nil)
	return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, want)
}

// Summary counts tickets per status and how many are late.
func (s *Service) Summary() map[string]int {
	board := s.board.Latest()
	out := map[string]int{"total": len(board.Tickets), "late": 0}
	for _, t := range board.Tickets {
		out[string(t.Status)]++
		if t.Late {
			out["late"]++
		}
	}
	return out
}
