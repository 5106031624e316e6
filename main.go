package main

import (
	"context"
	"log"
	"net/http"

	"officeflow/account"
	"officeflow/attachment"
	"officeflow/bizerror"
	"officeflow/client/es"
	"officeflow/client/oss"
	"officeflow/domain"
	"officeflow/domain/flow"
	"officeflow/event"
	"officeflow/indices"
	"officeflow/infra/tracing"
	"officeflow/persistence"
	"officeflow/servehttp"
	"officeflow/session"
	"officeflow/sessions"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	logrus.Infoln("service start")

	tracingCloser, tracingErr := tracing.Bootstrap()
	if tracingErr != nil {
		log.Fatalf("tracing bootstrap failed %v\n", tracingErr)
	}
	defer func() {
		_ = tracingCloser.Close()
	}()

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

	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		log.Fatalf("database connection failed %v\n", err)
	}
	defer ds.Stop()
	persistence.ActiveDataSourceManager = ds

	// database migration (race condition)
	db := ds.GormDB(context.Background())
	err = db.AutoMigrate(
		&domain.WorkflowDefinition{},
		&domain.WorkflowInstance{},
		&domain.WorkflowNodeInstance{},
		&domain.Department{},
		&account.User{},
		&account.UserRole{},
		&event.EventRecord{},
	).Error
	if err != nil {
		log.Fatalf("database migration failed %v\n", err)
	}

	if err := flow.BootstrapBuiltinDefinitions(db); err != nil {
		log.Fatalf("builtin workflow definitions bootstrap failed %v\n", err)
	}

	es.CreateClientFromEnv()
	oss.Bootstrap()

	event.EventHandlers = append(event.EventHandlers, indices.InstanceEventHandler)

	engine := gin.Default()
	engine.Use(bizerror.ErrorHandling(), tracing.TracingIngress())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "officeflow")
	})

	sessions.RegisterSessionsHandler(engine)
	sessions.RegisterSessionHandler(engine, session.SimpleAuthFilter())

	account.RegisterUsersHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterDepartmentHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterDefinitionHandler(engine, session.SimpleAuthFilter())
	servehttp.RegisterInstanceHandler(engine, session.SimpleAuthFilter())
	attachment.RegisterAttachmentAPI(engine, session.SimpleAuthFilter())
	indices.RegisterSearchHandler(engine, session.SimpleAuthFilter())

	err = engine.Run(":80")
	if err != nil {
		panic(err)
	}
}
