// internal/circulation/implementation.go
package circulation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"librarydesk/internal/catalog"
	"librarydesk/internal/journal"
	"librarydesk/internal/membership"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const instrumentationName = "librarydesk/circulation"

// service implements the Service interface.
type service struct {
	mu      sync.Mutex
	books   []*catalog.Book
	patrons []*membership.Patron
	loans   []*Loan

	nextBookID   int
	nextPatronID int
	nextLoanID   int

	journal        *journal.Journal
	limiter        *rate.Limiter
	now            func() time.Time
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	metrics        *metrics
}

// NewService creates an empty circulation desk.
func NewService(opts ...Option) Service {
	s := &service{
		nextBookID:     1,
		nextPatronID:   1,
		nextLoanID:     1,
		now:            time.Now,
		logger:         slog.New(slog.DiscardHandler),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.journal == nil {
		s.journal = journal.New(
			journal.WithTracerProvider(s.tracerProvider),
			journal.WithClock(s.now),
		)
	}
	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	s.metrics = newMetrics(s.meterProvider)
	return s
}

// record encodes payload and appends it to an aggregate stream.
func (s *service) record(ctx context.Context, aggregateType string, id, expectedVersion int, eventType string, payload any) error {
	event, err := journal.NewEvent(eventType, payload)
	if err != nil {
		return err
	}
	if err := s.journal.Append(ctx, aggregateType, strconv.Itoa(id), expectedVersion, event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", eventType, err)
	}
	return nil
}

func (s *service) currentVersion(aggregateType string, id int) int {
	return s.journal.CurrentVersion(aggregateType, strconv.Itoa(id))
}

func (s *service) allowRegistration() error {
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrRateLimited
	}
	return nil
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RegisterBook adds a title to the catalog.
func (s *service) RegisterBook(ctx context.Context, details catalog.Details) (int, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.register_book",
		trace.WithAttributes(attribute.String("book.title", details.Title)),
	)
	defer span.End()

	if err := s.allowRegistration(); err != nil {
		failSpan(span, err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, err := catalog.NewBook(s.nextBookID, details)
	if err != nil {
		failSpan(span, err)
		return 0, err
	}
	if err := s.record(ctx, aggregateBook, book.ID(), 0, EventBookRegistered, book.RegisteredEvent()); err != nil {
		failSpan(span, err)
		return 0, err
	}

	s.nextBookID++
	s.books = append(s.books, book)

	span.SetAttributes(attribute.Int("book.id", book.ID()))
	s.logger.InfoContext(ctx, "book registered",
		slog.Int("book_id", book.ID()),
		slog.String("title", details.Title),
		slog.Int("copies", details.Copies),
	)
	return book.ID(), nil
}

// RegisterPatron adds a patron of the given category.
func (s *service) RegisterPatron(ctx context.Context, profile membership.Profile) (int, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.register_patron",
		trace.WithAttributes(attribute.String("patron.category", profile.Category.String())),
	)
	defer span.End()

	if err := s.allowRegistration(); err != nil {
		failSpan(span, err)
		return 0, err
	}
	if !profile.Category.Valid() {
		err := fmt.Errorf("%w: %q", membership.ErrUnknownCategory, profile.Category)
		failSpan(span, err)
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patron := membership.NewPatron(s.nextPatronID, profile)
	event := membership.PatronRegisteredEvent{ID: patron.ID(), Name: patron.Name(), Category: patron.Category()}
	if err := s.record(ctx, aggregatePatron, patron.ID(), 0, EventPatronRegistered, event); err != nil {
		failSpan(span, err)
		return 0, err
	}

	s.nextPatronID++
	s.patrons = append(s.patrons, patron)

	span.SetAttributes(attribute.Int("patron.id", patron.ID()))
	s.logger.InfoContext(ctx, "patron registered",
		slog.Int("patron_id", patron.ID()),
		slog.String("category", profile.Category.String()),
	)
	return patron.ID(), nil
}

// Borrow lends one copy of a book to a patron.
func (s *service) Borrow(ctx context.Context, patronID, bookID int) (*Checkout, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.Int("patron.id", patronID),
			attribute.Int("book.id", bookID),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	checkout, err := s.borrow(ctx, patronID, bookID)
	if err != nil {
		failSpan(span, err)
		s.metrics.borrowRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason(err))))
		s.logger.WarnContext(ctx, "borrow rejected",
			slog.Int("patron_id", patronID),
			slog.Int("book_id", bookID),
			slog.String("reason", reason(err)),
			slog.Any("error", err),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("loan.id", checkout.LoanID))
	s.metrics.loansOpened.Add(ctx, 1, metric.WithAttributes(attribute.String("patron.category", checkout.Category.String())))
	s.logger.InfoContext(ctx, "book lent",
		slog.Int("loan_id", checkout.LoanID),
		slog.Int("patron_id", patronID),
		slog.Int("book_id", bookID),
		slog.Time("due_at", checkout.DueAt),
	)
	return checkout, nil
}

func (s *service) borrow(ctx context.Context, patronID, bookID int) (*Checkout, error) {
	// Step 1: Resolve the patron and the book
	patron := s.findPatron(patronID)
	if patron == nil {
		return nil, &NotFoundError{Entity: EntityPatron, ID: patronID}
	}
	book := s.findBook(bookID)
	if book == nil {
		return nil, &NotFoundError{Entity: EntityBook, ID: bookID}
	}

	// Step 2: Validate the patron
	if !patron.IsEligible() {
		r := ReasonOutstandingFines
		if !patron.Active() {
			r = ReasonInactive
		}
		return nil, &IneligiblePatronError{PatronID: patronID, Reason: r, Fines: patron.Fines()}
	}
	if open := s.countOpenLoans(patronID); open >= patron.BorrowingLimit() {
		return nil, &LimitExceededError{PatronID: patronID, Limit: patron.BorrowingLimit()}
	}

	// Step 3: Take a copy off the shelf (with compensation)
	if !book.Borrow() {
		return nil, &UnavailableError{BookID: bookID, Title: book.Title()}
	}

	// Step 4: Open and record the loan
	loan := newLoan(s.nextLoanID, patron, book, s.now())
	event := LoanOpenedEvent{
		LoanID:     loan.id,
		PatronID:   patronID,
		BookID:     bookID,
		BorrowedAt: loan.borrowedAt,
		DueAt:      loan.dueAt,
	}
	if err := s.record(ctx, aggregateLoan, loan.id, 0, EventLoanOpened, event); err != nil {
		s.logger.ErrorContext(ctx, "compensating for failed checkout: putting copy back",
			slog.Int("book_id", bookID),
			slog.Any("error", err),
		)
		book.Return()
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}
	loan.version = 1

	s.nextLoanID++
	s.loans = append(s.loans, loan)
	return loan.checkout(), nil
}

// ReturnLoan closes a loan at now and charges any overdue fine.
func (s *service) ReturnLoan(ctx context.Context, loanID int, now time.Time) (*ReturnReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.Int("loan.id", loanID)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, err := s.returnLoan(ctx, loanID, now)
	if err != nil {
		failSpan(span, err)
		s.logger.WarnContext(ctx, "return rejected",
			slog.Int("loan_id", loanID),
			slog.String("reason", reason(err)),
			slog.Any("error", err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("overdue.days", receipt.OverdueDays),
		attribute.String("fine.amount", receipt.Fine.StringFixed(2)),
	)
	s.metrics.loansClosed.Add(ctx, 1)
	if receipt.Fine.IsPositive() {
		s.metrics.finesCharged.Add(ctx, receipt.Fine.InexactFloat64(),
			metric.WithAttributes(attribute.String("source", "overdue")))
	}
	s.logger.InfoContext(ctx, "book returned",
		slog.Int("loan_id", loanID),
		slog.Int("patron_id", receipt.PatronID),
		slog.Int64("overdue_days", receipt.OverdueDays),
		slog.String("fine", receipt.Fine.StringFixed(2)),
	)
	return receipt, nil
}

func (s *service) returnLoan(ctx context.Context, loanID int, now time.Time) (*ReturnReceipt, error) {
	// Step 1: Find the loan
	loan := s.findLoan(loanID)
	if loan == nil {
		return nil, &NotFoundError{Entity: EntityLoan, ID: loanID}
	}
	if loan.Returned() {
		return nil, &AlreadyReturnedError{LoanID: loanID}
	}

	// Step 2: Record the return before changing any state
	event := LoanClosedEvent{
		LoanID:      loanID,
		PatronID:    loan.patron.ID(),
		BookID:      loan.book.ID(),
		ReturnedAt:  now,
		OverdueDays: loan.OverdueDays(now),
		Fine:        loan.FineAt(now),
	}
	if err := s.record(ctx, aggregateLoan, loanID, loan.version, EventLoanClosed, event); err != nil {
		return nil, fmt.Errorf("failed to record return: %w", err)
	}

	// Step 3: Close the loan
	fine, err := loan.CloseReturn(now)
	if err != nil {
		return nil, err
	}
	loan.version++

	return &ReturnReceipt{
		LoanID:           loanID,
		PatronID:         loan.patron.ID(),
		PatronName:       loan.patron.Name(),
		BookID:           loan.book.ID(),
		BookTitle:        loan.book.Title(),
		ReturnedAt:       now,
		OverdueDays:      event.OverdueDays,
		Fine:             fine,
		OutstandingFines: loan.patron.Fines(),
	}, nil
}

// AssessFine charges a patron a fine outside of a return.
func (s *service) AssessFine(ctx context.Context, patronID int, amount decimal.Decimal) error {
	ctx, span := s.tracer.Start(ctx, "circulation.assess_fine",
		trace.WithAttributes(
			attribute.Int("patron.id", patronID),
			attribute.String("fine.amount", amount.StringFixed(2)),
		),
	)
	defer span.End()

	if !amount.IsPositive() {
		err := fmt.Errorf("%w: fine must be positive, got %s", ErrInvalidAmount, amount.String())
		failSpan(span, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	patron := s.findPatron(patronID)
	if patron == nil {
		err := &NotFoundError{Entity: EntityPatron, ID: patronID}
		failSpan(span, err)
		return err
	}

	event := membership.FineAssessedEvent{ID: patronID, Amount: amount, Total: patron.Fines().Add(amount)}
	if err := s.record(ctx, aggregatePatron, patronID, s.currentVersion(aggregatePatron, patronID), EventFineAssessed, event); err != nil {
		failSpan(span, err)
		return err
	}
	patron.ChargeFine(amount)

	s.metrics.finesCharged.Add(ctx, amount.InexactFloat64(),
		metric.WithAttributes(attribute.String("source", "assessed")))
	s.logger.InfoContext(ctx, "fine assessed",
		slog.Int("patron_id", patronID),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("total", patron.Fines().StringFixed(2)),
	)
	return nil
}

// SetPatronActive activates or deactivates a patron.
func (s *service) SetPatronActive(ctx context.Context, patronID int, active bool) error {
	ctx, span := s.tracer.Start(ctx, "circulation.set_patron_active",
		trace.WithAttributes(
			attribute.Int("patron.id", patronID),
			attribute.Bool("patron.active", active),
		),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	patron := s.findPatron(patronID)
	if patron == nil {
		err := &NotFoundError{Entity: EntityPatron, ID: patronID}
		failSpan(span, err)
		return err
	}
	if patron.Active() == active {
		return nil
	}

	event := membership.StatusChangedEvent{ID: patronID, Active: active}
	if err := s.record(ctx, aggregatePatron, patronID, s.currentVersion(aggregatePatron, patronID), EventPatronStatusChanged, event); err != nil {
		failSpan(span, err)
		return err
	}
	if active {
		patron.Activate()
	} else {
		patron.Deactivate()
	}

	s.logger.InfoContext(ctx, "patron status changed",
		slog.Int("patron_id", patronID),
		slog.Bool("active", active),
	)
	return nil
}

func (s *service) Book(ctx context.Context, id int) (catalog.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.findBook(id)
	if book == nil {
		return catalog.Summary{}, &NotFoundError{Entity: EntityBook, ID: id}
	}
	return book.Summary(), nil
}

func (s *service) Patron(ctx context.Context, id int) (membership.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patron := s.findPatron(id)
	if patron == nil {
		return membership.Summary{}, &NotFoundError{Entity: EntityPatron, ID: id}
	}
	return patron.Summary(), nil
}

func (s *service) Loan(ctx context.Context, id int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan := s.findLoan(id)
	if loan == nil {
		return Record{}, &NotFoundError{Entity: EntityLoan, ID: id}
	}
	return loan.Record(), nil
}

// OpenLoans lists the loans a patron has not yet returned.
func (s *service) OpenLoans(ctx context.Context, patronID int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findPatron(patronID) == nil {
		return nil, &NotFoundError{Entity: EntityPatron, ID: patronID}
	}

	records := make([]Record, 0)
	for _, l := range s.loans {
		if l.patron.ID() == patronID && !l.returned {
			records = append(records, l.Record())
		}
	}
	return records, nil
}

// Search finds books whose title or author contains term, ignoring case.
func (s *service) Search(ctx context.Context, term string) []catalog.Summary {
	_, span := s.tracer.Start(ctx, "circulation.search",
		trace.WithAttributes(attribute.String("search.term", term)),
	)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	results := catalog.Search(s.books, term)
	span.SetAttributes(attribute.Int("search.results", len(results)))
	return results
}

// Report folds the collections into aggregate counts.
func (s *service) Report(ctx context.Context) Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		Titles:     len(s.books),
		Patrons:    len(s.patrons),
		TotalFines: decimal.Zero,
		TotalLoans: len(s.loans),
	}
	for _, b := range s.books {
		r.TotalCopies += b.TotalCopies()
		r.AvailableCopies += b.Available()
	}
	r.LentCopies = r.TotalCopies - r.AvailableCopies

	for _, p := range s.patrons {
		if p.Active() {
			r.ActivePatrons++
		}
		r.TotalFines = r.TotalFines.Add(p.Fines())
	}

	for _, l := range s.loans {
		if l.returned {
			r.ClosedLoans++
		} else {
			r.OpenLoans++
		}
	}
	return r
}

func (s *service) findBook(id int) *catalog.Book {
	for _, b := range s.books {
		if b.ID() == id {
			return b
		}
	}
	return nil
}

func (s *service) findPatron(id int) *membership.Patron {
	for _, p := range s.patrons {
		if p.ID() == id {
			return p
		}
	}
	return nil
}

func (s *service) findLoan(id int) *Loan {
	for _, l := range s.loans {
		if l.id == id {
			return l
		}
	}
	return nil
}

func (s *service) countOpenLoans(patronID int) int {
	count := 0
	for _, l := range s.loans {
		if l.patron.ID() == patronID && !l.returned {
			count++
		}
	}
	return count
}
