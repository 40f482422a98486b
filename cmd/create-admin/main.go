// Command create-admin seeds an admin principal:
//
//	create-admin -username root -email root@example.com -password secret123
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/skyhub/auth-service/internal/config"
	"github.com/skyhub/auth-service/internal/database"
	"github.com/skyhub/auth-service/internal/logger"
	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/repository"
)

type adminInput struct {
	Username string
	Email    string
	Password string
}

func (in adminInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(6, 72)),
	)
}

func main() {
	var in adminInput
	flag.StringVar(&in.Username, "username", "", "admin username")
	flag.StringVar(&in.Email, "email", "", "admin email")
	flag.StringVar(&in.Password, "password", "", "admin password")
	flag.Parse()

	if err := in.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid input:", err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("ensure schema")
	}

	p, err := repository.NewUserRepo(db, cfg.Auth.BcryptCost).Create(ctx, model.NewPrincipal{
		Username: in.Username,
		Email:    in.Email,
		Password: in.Password,
		Role:     model.RoleAdmin,
	})
	if err != nil {
		var ce *repository.ConflictError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.Error())
			db.Close()
			os.Exit(1)
		}
		log.WithError(err).Fatal("create admin")
	}
	log.WithField("user_id", p.ID).WithField("username", p.Username).Info("admin created")
}
