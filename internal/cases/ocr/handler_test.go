package ocr

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Attacher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kycreview/internal/cases/ingestion"
	"kycreview/internal/cases/models"
	"kycreview/internal/cases/ocr/mocks"
	"kycreview/internal/cases/service"
	"kycreview/internal/cases/store"
	"kycreview/internal/platform/kafka"
	dErrors "kycreview/pkg/domain-errors"
	"kycreview/pkg/requestcontext"
)

type setup struct {
	engine  *service.Service
	handler *Handler
	docID   string
}

func newSetup(t *testing.T) setup {
	t.Helper()
	ctx := context.Background()
	cases := store.NewInMemory()
	_, err := store.Seed(ctx, cases)
	require.NoError(t, err)

	engine := service.New(cases, ingestion.New(ingestion.WithIDGenerator(func() string { return "D-1" })))
	_, doc, err := engine.UploadDocument(requestcontext.WithTime(ctx, time.Now()), "C-1004", "",
		ingestion.File{Name: "scan.pdf", MIMEType: "application/pdf", Size: 10})
	require.NoError(t, err)
	return setup{engine: engine, handler: NewHandler(engine, nil), docID: doc.ID}
}

func message(value string) *kafka.Message {
	return &kafka.Message{Topic: Topic, Partition: 0, Offset: 7, Value: []byte(value)}
}

func TestHandleAttachesResult(t *testing.T) {
	st := newSetup(t)

	err := st.handler.Handle(context.Background(), message(
		`{"caseId":"C-1004","documentId":"D-1","documentType":"Passport","confidence":0.91,"metadata":{"Name":"Emma Wilson"}}`))
	require.NoError(t, err)

	c, err := st.engine.GetCase(context.Background(), "C-1004")
	require.NoError(t, err)
	doc := c.Documents[0]
	assert.True(t, doc.OCRProcessed)
	require.NotNil(t, doc.Classification)
	assert.Equal(t, "Passport", doc.Classification.DocumentType)
	assert.Equal(t, "Emma Wilson", doc.OCRMetadata["Name"])
}

func TestHandleDropsStaleResults(t *testing.T) {
	st := newSetup(t)

	err := st.handler.Handle(context.Background(), message(`{"caseId":"C-1004","documentId":"D-404","documentType":"x"}`))
	assert.NoError(t, err)

	_, err = st.engine.RecordDecision(context.Background(), "C-1004", models.DecisionReject, "")
	require.NoError(t, err)
	err = st.handler.Handle(context.Background(), message(`{"caseId":"C-1004","documentId":"D-1","documentType":"x"}`))
	assert.NoError(t, err)
}

func TestHandleSkipsBadRecords(t *testing.T) {
	st := newSetup(t)

	err := st.handler.Handle(context.Background(), message(`not json`))
	assert.True(t, kafka.IsSkipped(err), "undecodable records are never retried")
	err = st.handler.Handle(context.Background(), message(`{"caseId":"C-1004"}`))
	assert.True(t, kafka.IsSkipped(err))

	err = st.handler.Handle(context.Background(), message(`{"caseId":"C-1004","documentId":"D-1","confidence":3}`))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.True(t, kafka.IsSkipped(err))
}

func TestHandleEngineErrors(t *testing.T) {
	record := message(`{"caseId":"C-1004","documentId":"D-1","documentType":"Passport","confidence":0.8,"metadata":{"Name":"Emma Wilson"}}`)

	t.Run("passes the decoded result with the ocr actor", func(t *testing.T) {
		engine := mocks.NewMockAttacher(gomock.NewController(t))
		engine.EXPECT().
			AttachOCRResult(gomock.Any(), "C-1004", "D-1",
				models.Classification{DocumentType: "Passport", Confidence: 0.8},
				map[string]string{"Name": "Emma Wilson"}).
			DoAndReturn(func(ctx context.Context, _, _ string, _ models.Classification, _ map[string]string) (*models.Case, *models.Document, error) {
				assert.Equal(t, "ocr-service", requestcontext.ActorID(ctx))
				assert.Equal(t, "ocr-0-7", requestcontext.RequestID(ctx))
				return &models.Case{}, &models.Document{}, nil
			})

		require.NoError(t, NewHandler(engine, nil).Handle(context.Background(), record))
	})

	t.Run("transient failures are returned for a retry", func(t *testing.T) {
		engine := mocks.NewMockAttacher(gomock.NewController(t))
		storeDown := dErrors.Wrap(errors.New("connection reset"), dErrors.CodeInternal, "load case")
		engine.EXPECT().AttachOCRResult(gomock.Any(), "C-1004", "D-1", gomock.Any(), gomock.Any()).
			Return(nil, nil, storeDown)

		err := NewHandler(engine, nil).Handle(context.Background(), record)
		require.Error(t, err)
		assert.False(t, kafka.IsSkipped(err))
	})

	t.Run("stale results are dropped", func(t *testing.T) {
		engine := mocks.NewMockAttacher(gomock.NewController(t))
		engine.EXPECT().AttachOCRResult(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, nil, dErrors.New(dErrors.CodeInvalidState, "case is closed"))

		assert.NoError(t, NewHandler(engine, nil).Handle(context.Background(), record))
	})

	t.Run("malformed records never reach the engine", func(t *testing.T) {
		engine := mocks.NewMockAttacher(gomock.NewController(t))

		err := NewHandler(engine, nil).Handle(context.Background(), message(`{"documentId":"D-1"}`))
		assert.True(t, kafka.IsSkipped(err))
	})
}
