package responses

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	defer zap.ReplaceGlobals(zap.NewNop())

	logger, err := InitLogger("warn", false)
	if err != nil {
		t.Fatalf("InitLogger falhou: %v", err)
	}
	if logger.Core().Enabled(zap.InfoLevel) || !logger.Core().Enabled(zap.WarnLevel) {
		t.Error("nível warn não aplicado")
	}
	if zap.L() != logger {
		t.Error("logger deveria ser instalado como global")
	}

	if _, err := InitLogger("barulhento", true); err == nil {
		t.Error("nível inválido deveria falhar")
	}
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

	Error(c, http.StatusBadRequest, "Arquivo inválido", "aba não encontrada")

	if w.Code != http.StatusBadRequest || !c.IsAborted() {
		t.Fatalf("status %d, abortado %v", w.Code, c.IsAborted())
	}
	var body ErrorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON inválido: %v", err)
	}
	if body.Error != "Arquivo inválido" || len(body.Details) != 1 {
		t.Errorf("corpo inesperado: %+v", body)
	}
}
