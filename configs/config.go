package configs

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       int
	Env        string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBNameTest string
	RedisHost  string
	RedisPort  int

	JWTSecret string

	OpenAIKey          string
	OpenAIOrganization string
	FineTunedTaskModel string
	FineTunedChatModel string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripePricePremium  string
	StripePricePlaid    string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	PortalReturnURL     string
}

func LoadConfig() Config {
	if err := godotenv.Load(); err != nil {
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 3004
	}

	dbPort, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		dbPort = 5432
	}

	redisPort, err := strconv.Atoi(os.Getenv("REDIS_PORT"))
	if err != nil {
		redisPort = 6379
	}

	return Config{
		Port:       port,
		Env:        os.Getenv("GO_ENV"),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     dbPort,
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBNameTest: os.Getenv("DB_NAME_TEST"),
		RedisHost:  os.Getenv("REDIS_HOST"),
		RedisPort:  redisPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIOrganization: os.Getenv("OPENAI_ORGANIZATION_ID"),
		FineTunedTaskModel: os.Getenv("FINETUNED_TASK_MODEL_ID"),
		FineTunedChatModel: os.Getenv("FINETUNED_GENERAL_MODEL_ID"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePricePremium:  os.Getenv("STRIPE_PRICE_PREMIUM"),
		StripePricePlaid:    os.Getenv("STRIPE_PRICE_PLAID"),
		CheckoutSuccessURL:  os.Getenv("CHECKOUT_SUCCESS_URL"),
		CheckoutCancelURL:   os.Getenv("CHECKOUT_CANCEL_URL"),
		PortalReturnURL:     os.Getenv("PORTAL_RETURN_URL"),
	}
}
