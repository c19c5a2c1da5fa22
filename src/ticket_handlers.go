package main

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ticketwallet/src/config"
	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/syncer"
	"ticketwallet/src/types"
)

func ticketHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/tickets", func(ctx *gin.Context) {
			var tickets []models.Ticket
			conn := db.GetDb()
			if err := conn.
				Order("created_at desc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		GET("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var ticket models.Ticket
			conn := db.GetDb()
			if err := conn.
				Preload("Event").
				Preload("User").
				First(&ticket, "id = ?", params.ID).
				Error; err != nil {
				log.Printf("Error retrieving Ticket: %s\n", err.Error())
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": ticket})
		}).
		POST("/tickets", func(ctx *gin.Context) {
			var body types.CreateTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			startDate, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
				return
			}
			conn := db.GetDb()

			var user models.User
			if err := conn.First(&user, "id = ?", body.UserID).Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "user does not exist"})
				return
			}

			var event *models.Event
			if body.EventID != nil {
				var ev models.Event
				if err := conn.First(&ev, "id = ?", *body.EventID).Error; err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "event does not exist"})
					return
				}
				if !ev.Active {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "event is no longer active"})
					return
				}
				event = &ev
			}

			amount := body.Amount
			if amount == 0 {
				amount = 1
			}
			ticket := models.Ticket{
				ExternalID:  body.ExternalID,
				Name:        body.Name,
				Description: body.Description,
				BannerURL:   body.BannerURL,
				Amount:      amount,
				Seat:        body.Seat,
				Sector:      body.Sector,
				StartDate:   startDate,
				EventID:     body.EventID,
				UserID:      body.UserID,
			}
			if err := conn.Create(&ticket).Error; err != nil {
				log.Printf("error creating ticket: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			// Scheduling is best effort; the sweep picks the ticket up even if
			// the one-time job could not be registered.
			if _, err := mintQueue.ScheduleTicketMint(ticket.ID, event); err != nil {
				log.Printf("Could not schedule mint for ticket %s: %s\n", ticket.ID, err.Error())
			}

			ctx.JSON(http.StatusCreated, gin.H{"id": ticket.ID})
		}).
		PATCH("/tickets/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateTicketRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			var ticket models.Ticket
			if err := conn.Preload("Event").First(&ticket, "id = ?", params.ID).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if ticket.Status != types.TICKET_VALID {
				ctx.JSON(http.StatusConflict, gin.H{"error": "only valid tickets can be modified"})
				return
			}
			if ticket.Event != nil && ticket.Event.Started(time.Now()) {
				ctx.JSON(http.StatusConflict, gin.H{"error": "the event has already started"})
				return
			}

			updates := map[string]any{}
			if body.Name != nil {
				updates["name"] = *body.Name
			}
			if body.Description != nil {
				updates["description"] = *body.Description
			}
			if body.BannerURL != nil {
				updates["banner_url"] = *body.BannerURL
			}
			if body.Seat != nil {
				updates["seat"] = *body.Seat
			}
			if body.Sector != nil {
				updates["sector"] = *body.Sector
			}
			if body.StartDate != nil {
				startDate, err := time.Parse(config.TIME_PARSE_FORMAT, *body.StartDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
					return
				}
				updates["start_date"] = startDate
			}
			if len(updates) == 0 {
				ctx.JSON(http.StatusOK, gin.H{"id": ticket.ID})
				return
			}
			// Guarding on status closes the window against a concurrent mint.
			res := conn.Model(&models.Ticket{}).
				Where("id = ? AND status = ?", ticket.ID, types.TICKET_VALID).
				Updates(updates)
			if res.Error != nil {
				log.Printf("Error updating Ticket: %s\n", res.Error.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusConflict, gin.H{"error": "ticket changed state, refresh and retry"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": ticket.ID})
		}).
		POST("/tickets/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			res := conn.Model(&models.Ticket{}).
				Where("id = ? AND status = ?", params.ID, types.TICKET_VALID).
				Update("status", types.TICKET_CANCELED)
			if res.Error != nil {
				log.Printf("Error canceling Ticket: %s\n", res.Error.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if res.RowsAffected == 0 {
				ctx.JSON(http.StatusConflict, gin.H{"error": "ticket is not valid, minted and canceled tickets cannot be canceled"})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/tickets/:id/mint", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			outcome, err := syncEngine.MintIfEligible(ctx, params.ID)
			if err != nil {
				log.Printf("Error minting ticket %s: %s\n", params.ID, err.Error())
				switch {
				case errors.Is(err, syncer.ErrTicketNotFound):
					ctx.Status(http.StatusNotFound)
				case errors.Is(err, syncer.ErrChainNotConfigured):
					ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "blockchain is not configured"})
				default:
					ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": outcome})
		}).
		GET("/tickets/:id/verify", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			result, err := ticketReconciler.Verify(ctx, params.ID)
			if err != nil {
				log.Printf("Error verifying ticket %s: %s\n", params.ID, err.Error())
				switch {
				case errors.Is(err, syncer.ErrTicketNotFound):
					ctx.Status(http.StatusNotFound)
				case errors.Is(err, syncer.ErrChainNotConfigured):
					ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "blockchain is not configured"})
				default:
					ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				}
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": result})
		})
	return g
}
