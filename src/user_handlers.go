package main

import (
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/types"
)

func userHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/users/me", func(ctx *gin.Context) {
			uid, err := uuid.Parse(ctx.GetString("id"))
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			var user models.User
			conn := db.GetDb()
			if err := conn.First(&user, "id = ?", uid).Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": user})
		}).
		GET("/users/me/tickets", func(ctx *gin.Context) {
			uid, err := uuid.Parse(ctx.GetString("id"))
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			var tickets []models.Ticket
			conn := db.GetDb()
			if err := conn.
				Where("user_id = ?", uid).
				Order("created_at desc").
				Find(&tickets).Error; err != nil {
				log.Printf("Error retrieving Tickets: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": tickets})
		}).
		PATCH("/users/me/wallet", func(ctx *gin.Context) {
			uid, err := uuid.Parse(ctx.GetString("id"))
			if err != nil {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			var body types.UpdateWalletRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !common.IsHexAddress(body.WalletAddress) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "wallet_address is not a valid address"})
				return
			}
			conn := db.GetDb()
			// Switching to an external wallet drops the custodial key material.
			err = conn.Model(&models.User{}).
				Where("id = ?", uid).
				Updates(map[string]any{
					"wallet_address":        body.WalletAddress,
					"encrypted_private_key": nil,
					"key_salt":              nil,
					"key_iv":                nil,
					"key_auth_tag":          nil,
				}).Error
			if err != nil {
				log.Printf("Error updating wallet for user %s: %s\n", uid, err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"wallet_address": body.WalletAddress})
		})
	return g
}
