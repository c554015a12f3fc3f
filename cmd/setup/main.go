package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/seeders"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

// readInput reads a line of text from the console.
func readInput(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads a password from the console, masking the input.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func main() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("--- SatriaRisk Setup ---")

	fmt.Println("\n--- Database Configuration ---")
	dbHost := readInput(reader, "Enter Database Host (e.g., localhost or 'db' if using docker-compose): ")
	dbPort := readInput(reader, "Enter Database Port (e.g., 5432): ")
	dbUser := readInput(reader, "Enter Database User: ")
	dbPassword, err := readPassword("Enter Database Password: ")
	if err != nil {
		log.Fatalf("Failed to read database password: %v", err)
	}
	dbName := readInput(reader, "Enter Database Name: ")
	dbSSLMode := readInput(reader, "Enter Database SSL Mode (e.g., disable, require): ")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		dbHost, dbPort, dbUser, dbPassword, dbName, dbSSLMode)

	fmt.Println("Connecting to database...")
	if err := database.ConnectDB(dsn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	fmt.Println("Successfully connected to the database.")

	fmt.Println("\n--- Running Database Migrations ---")
	if err := database.MigrateDB(); err != nil {
		log.Fatalf("Database migration process failed.")
	}
	fmt.Println("Database migrations completed successfully.")

	db := database.GetDB()
	if db == nil {
		log.Fatal("Failed to get database instance for seeding.")
	}

	fmt.Println("\n--- Seeding Reference Data ---")
	if err := seeders.SeedInitialData(db); err != nil {
		log.Fatalf("Failed to seed reference data: %v", err)
	}
	fmt.Println("Reference data seeded successfully.")

	fmt.Println("\n--- Creating First Work Unit ---")
	unitName := readInput(reader, "Enter the name for the first work unit: ")
	if unitName == "" {
		unitName = "Head Office"
		fmt.Printf("No work unit name entered, using default: %s\n", unitName)
	}
	unitCode := readInput(reader, "Enter the code for the first work unit (e.g., HO): ")
	if unitCode == "" {
		unitCode = "HO"
	}

	unit := models.WorkUnit{Name: unitName, Code: unitCode}
	if err := db.Create(&unit).Error; err != nil {
		log.Fatalf("Failed to create work unit: %v", err)
	}
	fmt.Printf("Work unit '%s' created successfully with ID: %s\n", unit.Name, unit.ID)

	fmt.Println("\n--- Creating Admin User ---")
	adminName := readInput(reader, "Enter Admin User Name: ")
	adminEmail := readInput(reader, "Enter Admin User Email: ")

	var adminPassword string
	for {
		adminPassword, err = readPassword("Enter Admin User Password: ")
		if err != nil {
			log.Fatalf("Failed to read admin password: %v", err)
		}
		if adminPassword == "" {
			fmt.Println("Password cannot be empty. Please try again.")
			continue
		}
		confirm, err := readPassword("Confirm Admin User Password: ")
		if err != nil {
			log.Fatalf("Failed to read admin password confirmation: %v", err)
		}
		if adminPassword == confirm {
			break
		}
		fmt.Println("Passwords do not match. Please try again.")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	adminUser := models.User{
		WorkUnitID:   unit.ID,
		Name:         adminName,
		Email:        adminEmail,
		PasswordHash: string(hashedPassword),
		Roles:        models.RoleList{models.RoleAdmin, models.RoleRiskCommittee}.String(),
		IsActive:     true,
	}
	if err := db.Create(&adminUser).Error; err != nil {
		log.Fatalf("Failed to create admin user: %v. Ensure email is unique.", err)
	}
	fmt.Printf("Admin user '%s' created successfully.\n", adminUser.Email)

	fmt.Println("\n--- SatriaRisk Setup Complete! ---")
	fmt.Println("You can now start the main application server.")
}
