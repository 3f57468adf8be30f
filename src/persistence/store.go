package persistence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"papertrader/src/datamodels"
	"papertrader/src/strategies"
	"papertrader/src/utils/errors"
)

// Session is one resumable trading session: the portfolio state plus
// which strategies were active with what parameters. Custom rule-based
// strategies carry their full rule lists so they can be rebuilt on load.
type Session struct {
	SessionId         string
	SavedAt           time.Time
	Cash              float64
	InitialInvestment float64
	SelectedAsset     datamodels.Symbol
	Holdings          map[datamodels.Symbol]float64
	Transactions      []datamodels.Transaction
	ValueHistory      []datamodels.ValueSnapshot
	Strategies        []datamodels.StrategyInfo
	CustomStrategies  []strategies.CustomStrategyInfo
}

// Store persists sessions to a local sqlite file. Persistence is
// best-effort: the caller treats every failure here as "no saved
// session" and starts fresh.
type Store struct {
	db *gorm.DB
}

func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: slogGorm.New(),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open session database %s", path)
	}
	err = db.AutoMigrate(
		&datamodels.SessionRecord{},
		&datamodels.HoldingRecord{},
		&datamodels.TransactionRecord{},
		&datamodels.StrategyRecord{},
		&datamodels.ValueSnapshotRecord{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "migrate session schema")
	}
	return &Store{db: db}, nil
}

// SaveSession writes a complete session atomically under a fresh id.
func (s *Store) SaveSession(session Session) error {
	if session.SessionId == "" {
		session.SessionId = uuid.NewString()
	}
	if session.SavedAt.IsZero() {
		session.SavedAt = time.Now()
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		header := datamodels.SessionRecord{
			SessionId:         session.SessionId,
			SavedAt:           session.SavedAt,
			Cash:              session.Cash,
			InitialInvestment: session.InitialInvestment,
			SelectedAsset:     string(session.SelectedAsset),
		}
		if err := tx.Create(&header).Error; err != nil {
			return errors.Wrap(err, "save session header")
		}

		for symbol, amount := range session.Holdings {
			record := datamodels.HoldingRecord{
				SessionId: session.SessionId,
				Symbol:    string(symbol),
				Amount:    amount,
			}
			if err := tx.Create(&record).Error; err != nil {
				return errors.Wrapf(err, "save holding %s", symbol)
			}
		}

		for _, transaction := range session.Transactions {
			record := datamodels.TransactionRecord{
				SessionId:      session.SessionId,
				TransactionId:  transaction.Id,
				Timestamp:      transaction.Timestamp,
				Symbol:         string(transaction.Symbol),
				Side:           string(transaction.Side),
				AssetAmount:    transaction.AssetAmount,
				CashAmount:     transaction.CashAmount,
				Price:          transaction.Price,
				PortfolioValue: transaction.PortfolioValue,
				Strategy:       transaction.Strategy,
			}
			if err := tx.Create(&record).Error; err != nil {
				return errors.Wrapf(err, "save transaction %s", transaction.Id)
			}
		}

		for _, snapshot := range session.ValueHistory {
			record := datamodels.ValueSnapshotRecord{
				SessionId:  session.SessionId,
				Timestamp:  snapshot.Timestamp,
				TotalValue: snapshot.TotalValue,
				Cash:       snapshot.Cash,
				ROI:        snapshot.ROI,
			}
			if err := tx.Create(&record).Error; err != nil {
				return errors.Wrap(err, "save value snapshot")
			}
		}

		rulesByName := make(map[string]string, len(session.CustomStrategies))
		for _, custom := range session.CustomStrategies {
			encoded, err := json.Marshal(custom.Rules)
			if err != nil {
				return errors.Wrapf(err, "encode rules for %s", custom.Name)
			}
			rulesByName[custom.Name] = string(encoded)
		}

		for _, strategy := range session.Strategies {
			params, err := json.Marshal(strategy.Params)
			if err != nil {
				return errors.Wrapf(err, "encode params for %s", strategy.Name)
			}
			record := datamodels.StrategyRecord{
				SessionId: session.SessionId,
				Name:      strategy.Name,
				Active:    strategy.Active,
				Params:    string(params),
				Rules:     rulesByName[strategy.Name],
			}
			if err := tx.Create(&record).Error; err != nil {
				return errors.Wrapf(err, "save strategy %s", strategy.Name)
			}
		}
		return nil
	})
}

// LoadLatestSession returns the most recently saved session, or (nil, nil)
// when nothing has been saved yet.
func (s *Store) LoadLatestSession() (*Session, error) {
	var header datamodels.SessionRecord
	err := s.db.Order("saved_at DESC").First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load session header")
	}

	session := &Session{
		SessionId:         header.SessionId,
		SavedAt:           header.SavedAt,
		Cash:              header.Cash,
		InitialInvestment: header.InitialInvestment,
		SelectedAsset:     datamodels.Symbol(header.SelectedAsset),
		Holdings:          make(map[datamodels.Symbol]float64),
	}

	var holdings []datamodels.HoldingRecord
	if err := s.db.Where("session_id = ?", header.SessionId).Find(&holdings).Error; err != nil {
		return nil, errors.Wrap(err, "load holdings")
	}
	for _, record := range holdings {
		session.Holdings[datamodels.Symbol(record.Symbol)] = record.Amount
	}

	var transactions []datamodels.TransactionRecord
	err = s.db.Where("session_id = ?", header.SessionId).Order("timestamp ASC").Find(&transactions).Error
	if err != nil {
		return nil, errors.Wrap(err, "load transactions")
	}
	for _, record := range transactions {
		session.Transactions = append(session.Transactions, datamodels.Transaction{
			Id:             record.TransactionId,
			Timestamp:      record.Timestamp,
			Symbol:         datamodels.Symbol(record.Symbol),
			Side:           datamodels.OrderSide(record.Side),
			AssetAmount:    record.AssetAmount,
			CashAmount:     record.CashAmount,
			Price:          record.Price,
			PortfolioValue: record.PortfolioValue,
			Strategy:       record.Strategy,
		})
	}

	var snapshots []datamodels.ValueSnapshotRecord
	err = s.db.Where("session_id = ?", header.SessionId).Order("timestamp ASC").Find(&snapshots).Error
	if err != nil {
		return nil, errors.Wrap(err, "load value history")
	}
	for _, record := range snapshots {
		session.ValueHistory = append(session.ValueHistory, datamodels.ValueSnapshot{
			Timestamp:  record.Timestamp,
			TotalValue: record.TotalValue,
			Cash:       record.Cash,
			ROI:        record.ROI,
		})
	}

	var strategyRecords []datamodels.StrategyRecord
	if err := s.db.Where("session_id = ?", header.SessionId).Find(&strategyRecords).Error; err != nil {
		return nil, errors.Wrap(err, "load strategies")
	}
	for _, record := range strategyRecords {
		params := make(map[string]float64)
		if record.Params != "" {
			if err := json.Unmarshal([]byte(record.Params), &params); err != nil {
				return nil, errors.Wrapf(err, "decode params for %s", record.Name)
			}
		}
		session.Strategies = append(session.Strategies, datamodels.StrategyInfo{
			Name:   record.Name,
			Active: record.Active,
			Params: params,
		})
		if record.Rules != "" {
			var rules []strategies.Rule
			if err := json.Unmarshal([]byte(record.Rules), &rules); err != nil {
				return nil, errors.Wrapf(err, "decode rules for %s", record.Name)
			}
			session.CustomStrategies = append(session.CustomStrategies, strategies.CustomStrategyInfo{
				Name:   record.Name,
				Active: record.Active,
				Rules:  rules,
			})
		}
	}
	return session, nil
}
