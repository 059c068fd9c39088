package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/ids"
)

// seedTables lists tables in delete order.
var seedTables = []string{"notifications", "messages", "matches", "decisions", "presence", "users"}

// SeedTestData resets the database and populates it with demo users,
// decisions, matches and a few conversations.
//
// Behavior:
//  1. Clears every engine table.
//  2. Creates 20 users (10 male, 10 female) with hashed passwords; every
//     fifth user is premium.
//  3. Generates ~200 decisions with ~70% positive (a tenth of those are
//     super likes), and every 3rd pair is made mutual.
//  4. Opens one active match per mutual pair and writes a short
//     conversation into the first few.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	return seed(db, rand.New(rand.NewSource(time.Now().UnixNano())))
}

func seed(db *gorm.DB, r *rand.Rand) error {
	// --- Fresh start ---
	for _, table := range seedTables {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name = 'users'")
	}

	log.Println("Cleared existing data")

	// --- Seed Users (10 male, 10 female) ---
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]User, 0, 20)
	for i := 1; i <= 20; i++ {
		gender := "male"
		if i > 10 {
			gender = "female"
		}
		users = append(users, User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Gender:       gender,
			Active:       true,
			Premium:      i%5 == 0,
			LastLoginAt:  Now().Add(-time.Duration(r.Intn(500)) * time.Hour),
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Println("Seeded 20 users.")

	// --- Seed Decisions (~200) ---
	insert := func(actorID, subjectID uint64, kind DecisionKind) error {
		d := Decision{ID: ids.New(), ActorID: actorID, SubjectID: subjectID, Kind: kind, CreatedAt: Now()}
		// first decision on a pair wins, same as the ledger
		return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&d).Error
	}

	counter := 0
	for i := range users {
		actor := users[i]
		for j := 0; j < 12; j++ { // each user decides on ~12 others
			subject := users[r.Intn(len(users))]
			if actor.ID == subject.ID || actor.Gender == subject.Gender {
				continue
			}

			kind := KindPass
			if r.Intn(100) < 70 {
				kind = KindLike
				if r.Intn(10) == 0 {
					kind = KindSuperLike
				}
			}

			// guarantee mutual likes every 3rd pair
			if counter%3 == 0 {
				kind = KindLike
				if err := insert(subject.ID, actor.ID, KindLike); err != nil {
					return fmt.Errorf("failed to seed decision: %w", err)
				}
			}

			if err := insert(actor.ID, subject.ID, kind); err != nil {
				return fmt.Errorf("failed to seed decision: %w", err)
			}
			counter++
		}
	}

	// --- Matches for every reciprocal positive pair ---
	var pairs []struct {
		ActorID   uint64
		SubjectID uint64
	}
	positive := []DecisionKind{KindLike, KindSuperLike}
	if err := db.Table("decisions AS a").
		Select("a.actor_id, a.subject_id").
		Joins("JOIN decisions b ON b.actor_id = a.subject_id AND b.subject_id = a.actor_id").
		Where("a.actor_id < a.subject_id AND a.kind IN ? AND b.kind IN ?", positive, positive).
		Scan(&pairs).Error; err != nil {
		return fmt.Errorf("failed to find mutual pairs: %w", err)
	}

	lines := []string{"hey!", "hi, how's your week going?", "pretty good, yours?"}
	for n, p := range pairs {
		now := Now()
		key := PairKeyFor(p.ActorID, p.SubjectID)
		m := Match{
			ID:            ids.New(),
			UserA:         p.ActorID,
			UserB:         p.SubjectID,
			PairKey:       &key,
			Active:        true,
			LastMessageAt: now,
			CreatedAt:     now,
		}
		var msgs []Message
		if n < 3 {
			for i, line := range lines {
				sender := m.UserA
				if i%2 == 1 {
					sender = m.UserB
				}
				m.LastSeq++
				m.LastMessageAt = m.LastMessageAt.Add(time.Millisecond)
				msgs = append(msgs, Message{
					ID:        ids.NewULID(m.LastMessageAt),
					MatchID:   m.ID,
					Seq:       m.LastSeq,
					SenderID:  sender,
					Content:   line,
					CreatedAt: m.LastMessageAt,
				})
			}
		}
		if err := db.Create(&m).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
		if len(msgs) > 0 {
			if err := db.Create(&msgs).Error; err != nil {
				return fmt.Errorf("failed to seed messages: %w", err)
			}
		}
	}
	log.Printf("Seeded %d decisions, %d matches.", counter, len(pairs))

	return nil
}
