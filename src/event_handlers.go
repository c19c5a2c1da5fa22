package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ticketwallet/src/config"
	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/types"
)

func eventHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/events", func(ctx *gin.Context) {
			var events []models.Event
			conn := db.GetDb()
			if err := conn.
				Order("created_at desc").
				Find(&events).Error; err != nil {
				log.Printf("Error retrieving Events: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": events})
		}).
		GET("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var event models.Event
			conn := db.GetDb()
			if err := conn.
				Preload("Company").
				First(&event, "id = ?", params.ID).
				Error; err != nil {
				log.Printf("Error retrieving Event: %s\n", err.Error())
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": event})
		}).
		POST("/events", func(ctx *gin.Context) {
			var body types.CreateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			startDate, err := time.Parse(config.TIME_PARSE_FORMAT, body.StartDate)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
				return
			}
			event := models.Event{
				Name:        body.Name,
				Description: body.Description,
				StartDate:   startDate,
				PostbackURL: body.PostbackURL,
			}
			if body.EndDate != nil {
				endDate, err := time.Parse(config.TIME_PARSE_FORMAT, *body.EndDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC3339"})
					return
				}
				if endDate.Before(startDate) {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "end_date must not precede start_date"})
					return
				}
				event.EndDate = &endDate
			}
			conn := db.GetDb()
			if err := conn.Create(&event).Error; err != nil {
				log.Printf("Error creating Event: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": event.ID})
		}).
		PATCH("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			var body types.UpdateEventRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			var event models.Event
			if err := conn.First(&event, "id = ?", params.ID).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if event.Started(time.Now()) {
				ctx.JSON(http.StatusConflict, gin.H{"error": "event has already started and can no longer be modified"})
				return
			}

			updates := map[string]any{}
			if body.Name != nil {
				updates["name"] = *body.Name
			}
			if body.Description != nil {
				updates["description"] = *body.Description
			}
			if body.PostbackURL != nil {
				updates["postback_url"] = *body.PostbackURL
			}
			if body.StartDate != nil {
				startDate, err := time.Parse(config.TIME_PARSE_FORMAT, *body.StartDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
					return
				}
				updates["start_date"] = startDate
			}
			if body.EndDate != nil {
				endDate, err := time.Parse(config.TIME_PARSE_FORMAT, *body.EndDate)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC3339"})
					return
				}
				updates["end_date"] = endDate
			}
			if len(updates) == 0 {
				ctx.JSON(http.StatusOK, gin.H{"id": event.ID})
				return
			}
			if err := conn.Model(&event).Updates(updates).Error; err != nil {
				log.Printf("Error updating Event: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"id": event.ID})
		}).
		DELETE("/events/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			res := conn.Model(&models.Event{}).
				Where("id = ?", params.ID).
				Update("active", false)
			if res.Error != nil {
				log.Printf("Error deactivating Event: %s\n", res.Error.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
