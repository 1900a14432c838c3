package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/agemsdev/fiscaliza_backend/cascade"
	"bitbucket.org/agemsdev/fiscaliza_backend/config"
	"bitbucket.org/agemsdev/fiscaliza_backend/connectivity"
	"bitbucket.org/agemsdev/fiscaliza_backend/datastore"
	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/remote"
	"bitbucket.org/agemsdev/fiscaliza_backend/syncqueue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	settings := config.Load()
	logger := config.NewLogger()

	db, err := config.ConnectLocalDatabase(settings)
	if err != nil {
		logger.Panic(err.Error())
	}
	if err := db.AutoMigrate(models.LocalTables()...); err != nil {
		logger.Panic(err.Error())
	}

	httpStore, err := remote.NewHTTPStore(settings.RemoteBaseURL, settings.RemoteAPIKey, settings.RemoteTimeout)
	if err != nil {
		logger.Panic(err.Error())
	}
	monitor := connectivity.NewMonitor(httpStore.Ping, settings.ProbeInterval, logger)
	facade := datastore.NewFacade(db, httpStore, monitor, logger)
	manager := syncqueue.NewManager(db, httpStore, monitor, logger, settings.SyncInterval)
	applier := cascade.NewApplier(facade, logger)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	go monitor.Run(sigCtx)
	go manager.Run(sigCtx)

	r := gin.New()
	r.Use(gin.Recovery())

	// The API is a loopback surface for the UI shell on the same
	// device; CORS stays permissive on purpose.
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type")
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/sync/status", func(c *gin.Context) {
		status, err := manager.Status()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	})

	r.POST("/sync/drain", func(c *gin.Context) {
		synced, err := manager.Drain(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "synced": synced})
			return
		}
		c.JSON(http.StatusOK, gin.H{"synced": synced})
	})

	r.POST("/sync/retry-failed", func(c *gin.Context) {
		n, err := syncqueue.RetryFailed(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"requeued": n})
	})

	// Destructive: discards everything not yet synced.
	r.DELETE("/sync/queue", func(c *gin.Context) {
		n, err := syncqueue.Clear(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"discarded": n})
	})

	r.POST("/reference/download", func(c *gin.Context) {
		results, err := facade.DownloadAllReferenceData(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entities": results})
	})

	r.POST("/unidades/:id/respostas", func(c *gin.Context) {
		var body struct {
			ItemChecklistID string `json:"item_checklist_id"`
			Resposta        string `json:"resposta"`
			Observacao      string `json:"observacao"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		saved, err := applier.AnswerItem(c.Request.Context(), cascade.AnswerInput{
			UnidadeFiscalizadaID: c.Param("id"),
			ItemChecklistID:      body.ItemChecklistID,
			Resposta:             models.RespostaValor(body.Resposta),
			Observacao:           body.Observacao,
		})
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, saved)
	})

	r.POST("/unidades/:id/constatacoes-manuais", func(c *gin.Context) {
		var body cascade.ManualFindingInput
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		body.UnidadeFiscalizadaID = c.Param("id")
		manual, err := applier.CreateManualFinding(c.Request.Context(), body)
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, manual)
	})

	r.DELETE("/constatacoes-manuais/:id", func(c *gin.Context) {
		if err := applier.DeleteManualFinding(c.Request.Context(), c.Param("id")); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/unidades/:id/finalizar", func(c *gin.Context) {
		result, err := applier.FinalizeUnit(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.POST("/unidades/:id/renumerar", func(c *gin.Context) {
		n, err := applier.RenumberUnit(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"total_constatacoes": n})
	})

	logger.WithField("addr", settings.ListenAddr).Info("sync service listening")
	if err := r.Run(settings.ListenAddr); err != nil {
		logger.Panic(err.Error())
	}
}
