package models

import (
	"log"

	"github.com/taajiri/pawnshop_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&BusinessRules{},
		&Borrower{}, &Collateral{}, &Loan{}, &Payment{},
		&Expense{},
		&LoanEventRecord{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
