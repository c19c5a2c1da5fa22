package main

import (
	"io"
	"log"
	"math/big"
	"net/http"

	"github.com/gin-gonic/gin"
)

// syncHandlers exposes manual operations for the sync pipeline. Admin only.
func syncHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	sync := g.Group("/sync")
	sync.
		POST("/process", func(ctx *gin.Context) {
			if err := syncEngine.ProcessAllPending(ctx); err != nil {
				log.Printf("Error running sync pass: %s\n", err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusAccepted)
		}).
		GET("/dlq", func(ctx *gin.Context) {
			var query struct {
				Limit int64 `form:"limit,default=50"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			messages, err := deadLetters.List(ctx, query.Limit)
			if err != nil {
				log.Printf("Error reading DLQ: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			total, _ := deadLetters.Len(ctx)
			ctx.JSON(http.StatusOK, gin.H{"data": messages, "total": total})
		}).
		GET("/minted", func(ctx *gin.Context) {
			if chainClient == nil {
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "blockchain is not configured"})
				return
			}
			var query struct {
				FromBlock *int64 `form:"from_block"`
				ToBlock   *int64 `form:"to_block"`
			}
			if err := ctx.ShouldBindQuery(&query); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var from, to *big.Int
			if query.FromBlock != nil {
				from = big.NewInt(*query.FromBlock)
			}
			if query.ToBlock != nil {
				to = big.NewInt(*query.ToBlock)
			}
			logs, err := chainClient.FilterMinted(ctx, from, to)
			if err != nil {
				log.Printf("Error listing minted tokens: %s\n", err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": logs})
		})
	return sync
}

// webhookTestRoute is a local receiver for postback payloads, handy when
// developing against a postback_url pointed at this server.
func webhookTestRoute(g *gin.RouterGroup) {
	g.POST("/webhook/test", func(ctx *gin.Context) {
		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[webhook-test] Received payload: %s\n", string(body))
		ctx.JSON(http.StatusOK, gin.H{"received": true})
	})
}
