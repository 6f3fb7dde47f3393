package main

import (
	"log"
	"net/http"
	"signoff/account"
	"signoff/bizerror"
	"signoff/common"
	"signoff/domain"
	"signoff/domain/approval"
	"signoff/es"
	"signoff/history"
	"signoff/indices"
	"signoff/indices/search"
	"signoff/infra/tracing"
	"signoff/persistence"
	"signoff/servehttp"
	"signoff/session"
	"signoff/sessions"

	"github.com/fundwit/go-commons/types"
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	jaegerlog "github.com/uber/jaeger-client-go/log"
	"github.com/uber/jaeger-lib/metrics"
)

func main() {
	log.Println("service start")

	closer := bootstrapTracing()
	if closer != nil {
		defer closer()
	}

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		log.Fatalf("parse database config failed %v\n", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			log.Fatalf("failed to prepare database %v\n", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		log.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	err = ds.GormDB(nil).AutoMigrate(
		&account.User{}, &account.Role{}, &account.Permission{},
		&account.RolePermissionBinding{}, &account.UserRoleBinding{},
		&domain.Organization{}, &domain.OrgMember{},
		&domain.ApprovalTemplate{}, &domain.TemplateStep{},
		&domain.ApprovalWorkflow{}, &domain.ApprovalStep{},
		&history.HistoryRecord{}).Error
	if err != nil {
		log.Fatalf("database migration failed %v\n", err)
	}

	if err := account.DefaultSecurityConfiguration(); err != nil {
		log.Fatalf("failed to prepare default security configuration %v\n", err)
	}

	es.CreateClientFromEnv()
	approval.WorkflowIndexNotifyFunc = func(workflowID types.ID) {
		go indices.SyncWorkflowIndexFunc(workflowID)
	}
	indices.StartCron()

	engine := gin.Default()
	engine.Use(tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	sessions.RegisterSessionsHandler(engine)
	sessions.RegisterSessionHandler(engine, session.SimpleAuthFilter())
	account.RegisterUsersHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterTemplateHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterWorkflowHandler(engine, session.SimpleAuthFilter())
	indices.RegisterIndicesRestAPI(engine, session.SimpleAuthFilter())
	search.RegisterWorkflowSearchRestAPI(engine, session.SimpleAuthFilter())

	servehttp.StartHTTPServer(engine)
}

func bootstrapTracing() func() {
	cfg, err := jaegercfg.FromEnv()
	if err != nil {
		log.Printf("failed to parse jaeger config from env: %v\n", err)
		return nil
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = common.GetServiceName()
	}
	tracer, closer, err := cfg.NewTracer(jaegercfg.Logger(jaegerlog.StdLogger), jaegercfg.Metrics(metrics.NullFactory))
	if err != nil {
		log.Printf("failed to create jaeger tracer: %v\n", err)
		return nil
	}
	opentracing.SetGlobalTracer(tracer)
	return func() {
		if err := closer.Close(); err != nil {
			log.Printf("failed to close jaeger tracer: %v\n", err)
		}
	}
}
