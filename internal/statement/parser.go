// Package statement turns OFX bank statement files into transaction records.
package statement

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-insights/internal/domain"
)

// Parse decodes raw with the given charset and extracts every transaction
// of every account, in the order the accounts appear in the document,
// each account's entries as listed.
//
// Any failure is reported as a domain ParseError and no records are
// returned.
func Parse(raw []byte, encodingName string) ([]domain.TransactionRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, domain.ParseError("Parse", errors.New("empty statement"))
	}

	text, err := Decode(raw, encodingName)
	if err != nil {
		return nil, domain.ParseError("Parse", err)
	}

	resp, err := ofxgo.ParseResponse(bytes.NewReader(text))
	if err != nil {
		return nil, domain.ParseError("Parse", fmt.Errorf("reading OFX document: %w", err))
	}

	var bank, cards []domain.TransactionRecord

	for i, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		txs, err := convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))
		if err != nil {
			return nil, domain.ParseError("Parse", fmt.Errorf("bank statement %d: %w", i, err))
		}
		bank = append(bank, txs...)
	}

	for i, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		txs, err := convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))
		if err != nil {
			return nil, domain.ParseError("Parse", fmt.Errorf("credit card statement %d: %w", i, err))
		}
		cards = append(cards, txs...)
	}

	// ofxgo splits the two message sets, so restore their document order.
	var records []domain.TransactionRecord
	if cardsFirst(text) {
		records = append(cards, bank...)
	} else {
		records = append(bank, cards...)
	}

	if records == nil {
		records = []domain.TransactionRecord{}
	}
	return records, nil
}

// cardsFirst reports whether the credit card message set precedes the
// bank message set in the document.
func cardsFirst(text []byte) bool {
	upper := bytes.ToUpper(text)
	card := bytes.Index(upper, []byte("<CREDITCARDMSGSRSV1>"))
	if card < 0 {
		return false
	}
	bank := bytes.Index(upper, []byte("<BANKMSGSRSV1>"))
	return bank < 0 || card < bank
}

func convertList(list *ofxgo.TransactionList, accountID string) ([]domain.TransactionRecord, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]domain.TransactionRecord, 0, len(list.Transactions))
	for i, tx := range list.Transactions {
		rec, err := convertTransaction(tx, accountID)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func convertTransaction(tx ofxgo.Transaction, accountID string) (domain.TransactionRecord, error) {
	if tx.DtPosted.IsZero() {
		return domain.TransactionRecord{}, errors.New("missing posting date")
	}

	// The OFX amount is an exact rational; render it with enough digits
	// that no cent is lost before handing it to decimal.
	amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(6))
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("invalid amount: %w", err)
	}

	description := string(tx.Memo)
	if strings.TrimSpace(description) == "" {
		description = string(tx.Name)
	}

	return domain.TransactionRecord{
		Date:        civil.DateOf(tx.DtPosted.Time),
		Amount:      amount,
		Description: description,
		ExternalID:  string(tx.FiTID),
		AccountID:   accountID,
	}, nil
}
