package main

import (
	"fmt"

	"budmart/internal/domain/leads"
	"budmart/internal/domain/orders"
	"budmart/internal/helpers"
	"budmart/internal/mailer"
)

const managerName = "Менеджер"

// background runs fn outside the request. run waits for these tasks on
// shutdown; a panic is logged instead of crashing the server.
func (app *application) background(fn func()) {
	app.wg.Add(1)

	go func() {
		defer app.wg.Done()
		defer func() {
			if err := recover(); err != nil {
				app.logger.Errorw("background task panicked", "error", fmt.Sprint(err))
			}
		}()

		fn()
	}()
}

func (app *application) notifyNewOrder(o *orders.Order) {
	data := helpers.ToOrderMail(o, app.config.frontendURL)
	app.background(func() {
		if err := app.mailer.Send(mailer.NewOrderTemplate, managerName, app.config.mail.managerEmail, data); err != nil {
			app.logger.Errorw("error sending order notification", "order", o.Number, "error", err)
		}
	})
}

func (app *application) notifyNewLead(l *leads.Lead) {
	data := helpers.ToLeadMail(l, app.config.frontendURL)
	app.background(func() {
		if err := app.mailer.Send(mailer.NewLeadTemplate, managerName, app.config.mail.managerEmail, data); err != nil {
			app.logger.Errorw("error sending lead notification", "lead", l.ID, "error", err)
		}
	})
}
