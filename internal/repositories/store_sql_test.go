package repositories

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/interview-evaluator/internal/models"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func newMockEvaluationRepo(t *testing.T) (*evaluationRepository, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return &evaluationRepository{db: db, now: func() time.Time { return fixedNow }}, mock
}

func evaluationRow(evalID, answerID uuid.UUID, status models.EvaluationStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "answer_id", "status", "language", "transcription", "created_at", "updated_at"}).
		AddRow(evalID.String(), answerID.String(), string(status), "en", "previous transcript", fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour))
}

const (
	lockAnswerSQL     = `SELECT "id" FROM "answers" WHERE id = \$1 .*FOR UPDATE`
	findByAnswerSQL   = `SELECT \* FROM "evaluations" WHERE answer_id = \$1`
	lockEvaluationSQL = `SELECT \* FROM "evaluations" WHERE id = \$1 .*FOR UPDATE`
)

func TestAcquireAnswerLock(t *testing.T) {
	answerID := uuid.New()
	evalID := uuid.New()

	t.Run("processing row is busy whatever force says", func(t *testing.T) {
		for _, force := range []bool{false, true} {
			repo, mock := newMockEvaluationRepo(t)
			mock.ExpectBegin()
			mock.ExpectQuery(lockAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(answerID.String()))
			mock.ExpectQuery(findByAnswerSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusProcessing))
			mock.ExpectCommit()

			eval, outcome, err := repo.AcquireAnswerLock(context.Background(), answerID, force)

			require.NoError(t, err)
			assert.Equal(t, AcquireBusy, outcome)
			assert.Equal(t, models.StatusProcessing, eval.Status)
			assert.NoError(t, mock.ExpectationsWereMet())
		}
	})

	t.Run("completed row short-circuits without force", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(answerID.String()))
		mock.ExpectQuery(findByAnswerSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusCompleted))
		mock.ExpectCommit()

		eval, outcome, err := repo.AcquireAnswerLock(context.Background(), answerID, false)

		require.NoError(t, err)
		assert.Equal(t, AcquireCompleted, outcome)
		assert.Equal(t, "previous transcript", eval.Transcription)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("forced run starts and resets the previous transcript", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(answerID.String()))
		mock.ExpectQuery(findByAnswerSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusCompleted))
		mock.ExpectExec(`UPDATE "evaluations" SET "error_message"=\$1,"language"=\$2,"processing_metadata"=\$3,"segments"=\$4,"status"=\$5,"transcription"=\$6,"transcription_confidence"=\$7,"updated_at"=\$8 WHERE id = \$9`).
			WithArgs(nil, "unknown", nil, nil, "processing", "", 0, sqlmock.AnyArg(), evalID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eval, outcome, err := repo.AcquireAnswerLock(context.Background(), answerID, true)

		require.NoError(t, err)
		assert.Equal(t, AcquireStarted, outcome)
		assert.Equal(t, evalID, eval.ID)
		assert.Equal(t, models.StatusProcessing, eval.Status)
		assert.Empty(t, eval.Transcription)
		assert.Equal(t, "unknown", eval.Language)
		assert.True(t, eval.UpdatedAt.Equal(fixedNow))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first request creates the row", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(answerID.String()))
		mock.ExpectQuery(findByAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`INSERT INTO "evaluations" .* RETURNING "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(evalID.String()))
		mock.ExpectExec(`UPDATE "evaluations" SET .*"status"=\$5.* WHERE id = \$9`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eval, outcome, err := repo.AcquireAnswerLock(context.Background(), answerID, false)

		require.NoError(t, err)
		assert.Equal(t, AcquireStarted, outcome)
		assert.Equal(t, answerID, eval.AnswerID)
		assert.Equal(t, models.StatusProcessing, eval.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown answer", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockAnswerSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, _, err := repo.AcquireAnswerLock(context.Background(), answerID, false)

		assert.ErrorIs(t, err, ErrAnswerNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTransitionStatus(t *testing.T) {
	evalID := uuid.New()
	answerID := uuid.New()
	msg := "media_unreachable: network_error"
	elapsed := 1.5

	failed := StatusChange{
		From:                  models.StatusProcessing,
		To:                    models.StatusFailed,
		ErrorMessage:          &msg,
		ProcessingTimeSeconds: &elapsed,
		Provider:              models.ProviderError,
		ClearScores:           true,
		Metadata:              datatypes.JSONMap{"error_kind": "media_unreachable"},
	}

	t.Run("moves processing to failed with metadata", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockEvaluationSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusProcessing))
		mock.ExpectExec(`UPDATE "evaluations" SET "communication_score"=\$1,.*"processing_metadata"=\$\d+,.*"provider"=\$\d+,.*"status"=\$\d+,.* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		eval, err := repo.TransitionStatus(context.Background(), evalID, failed)

		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, eval.Status)
		assert.Equal(t, models.ProviderError, eval.Provider)
		assert.Nil(t, eval.OverallScore)
		assert.Equal(t, "media_unreachable", eval.ProcessingMetadata["error_kind"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("status changed before the lock", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockEvaluationSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusCompleted))
		mock.ExpectRollback()

		_, err := repo.TransitionStatus(context.Background(), evalID, failed)

		assert.ErrorIs(t, err, ErrStaleTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conditional update touches no row", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockEvaluationSQL).WillReturnRows(evaluationRow(evalID, answerID, models.StatusProcessing))
		mock.ExpectExec(`UPDATE "evaluations" SET .* WHERE id = \$\d+ AND status = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.TransitionStatus(context.Background(), evalID, failed)

		assert.ErrorIs(t, err, ErrStaleTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		repo, mock := newMockEvaluationRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockEvaluationSQL).WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectRollback()

		_, err := repo.TransitionStatus(context.Background(), evalID, failed)

		assert.ErrorIs(t, err, ErrEvaluationNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpsertEvaluation_UpdatesEverythingButIdentity(t *testing.T) {
	columns := []string{
		"transcription", "language", "transcription_confidence", "segments",
		"communication_score", "relevance_score", "confidence_score", "technical_score", "overall_score",
		"strengths", "weaknesses", "feedback", "provider", "status",
		"error_message", "processing_time_seconds", "processing_metadata",
		"updated_at", "completed_at",
	}
	assignments := make([]string, 0, len(columns))
	for _, column := range columns {
		assignments = append(assignments, `"`+column+`"="excluded"."`+column+`"`)
	}

	repo, mock := newMockEvaluationRepo(t)
	evalID := uuid.New()
	mock.ExpectQuery(`INSERT INTO "evaluations" .* ON CONFLICT \("answer_id"\) DO UPDATE SET ` +
		regexp.QuoteMeta(strings.Join(assignments, ",")) + ` RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(evalID.String()))

	err := repo.UpsertEvaluation(context.Background(), &models.Evaluation{
		ID:        evalID,
		AnswerID:  uuid.New(),
		Status:    models.StatusProcessing,
		Language:  "en",
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceForCampaign(t *testing.T) {
	campaignID := uuid.New()
	campaignCountSQL := `SELECT count\(\*\) FROM "campaigns" WHERE id = \$1`
	answerCountSQL := `SELECT count\(\*\) FROM "answers" JOIN questions ON questions.id = answers.question_id WHERE questions.campaign_id = \$1`

	t.Run("refuses once answers are recorded", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(campaignCountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(answerCountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
		mock.ExpectRollback()

		err := NewQuestionRepository(db).ReplaceForCampaign(context.Background(), campaignID, []models.Question{{Text: "Q", Position: 1}})

		assert.ErrorIs(t, err, ErrCampaignHasAnswers)
		assert.NoError(t, mock.ExpectationsWereMet(), "no DELETE may run")
	})

	t.Run("replaces an unanswered list", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(campaignCountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(answerCountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(`DELETE FROM "questions" WHERE campaign_id = \$1`).WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectQuery(`INSERT INTO "questions"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(uuid.New().String(), fixedNow, fixedNow))
		mock.ExpectCommit()

		err := NewQuestionRepository(db).ReplaceForCampaign(context.Background(), campaignID, []models.Question{{Text: "Q", Position: 1}})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown campaign", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectBegin()
		mock.ExpectQuery(campaignCountSQL).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectRollback()

		err := NewQuestionRepository(db).ReplaceForCampaign(context.Background(), campaignID, nil)

		assert.ErrorIs(t, err, ErrCampaignNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
