package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ticketwallet/src/db"
	"ticketwallet/src/models"
	"ticketwallet/src/types"
	"ticketwallet/src/wallet"
)

func authHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	auth := g.Group("/auth")
	auth.
		POST("/register", func(ctx *gin.Context) {
			var body types.RegisterRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			var count int64
			conn.Model(&models.User{}).Where("email = ?", body.Email).Count(&count)
			if count > 0 {
				ctx.JSON(http.StatusConflict, gin.H{"error": "email is already registered"})
				return
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
			if err != nil {
				log.Printf("Error hashing password: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}

			user := models.User{
				Email:        body.Email,
				PasswordHash: string(hash),
				Role:         types.ROLE_USER,
			}

			// Every account gets a custodial wallet. The private key is stored
			// encrypted and never leaves the server.
			generated, err := wallet.Generate()
			if err != nil {
				log.Printf("Error generating wallet: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			encrypted, err := wallet.Encrypt(generated.PrivateKey)
			if err != nil {
				log.Printf("Error encrypting wallet key: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			user.WalletAddress = &generated.Address
			user.EncryptedPrivateKey = &encrypted.Ciphertext
			user.KeySalt = &encrypted.Salt
			user.KeyIV = &encrypted.IV
			user.KeyAuthTag = &encrypted.AuthTag

			if err := conn.Create(&user).Error; err != nil {
				log.Printf("Error creating User: %s\n", err.Error())
				ctx.Status(http.StatusBadRequest)
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{
				"id":             user.ID,
				"email":          user.Email,
				"wallet_address": user.WalletAddress,
			})
		}).
		POST("/login", func(ctx *gin.Context) {
			var body types.LoginRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			conn := db.GetDb()
			var user models.User
			if err := conn.Where("email = ?", body.Email).First(&user).Error; err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
				ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
				return
			}

			expiry := time.Now().Add(24 * time.Hour)
			claims := types.Claims{
				Email: user.Email,
				Role:  user.Role,
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   user.ID.String(),
					ExpiresAt: jwt.NewNumericDate(expiry),
					IssuedAt:  jwt.NewNumericDate(time.Now()),
				},
			}
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
			signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
			if err != nil {
				log.Printf("Error signing token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"token":      signed,
				"expires_at": expiry,
			})
		})
	return auth
}
