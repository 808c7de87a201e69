// Package statementtest builds OFX 1.x documents for tests.
package statementtest

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const header = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

`

const signon = `<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240131120000
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
`

// Tx is one STMTTRN entry. Date is YYYYMMDD.
type Tx struct {
	Type, Date, Amount, ID, Memo string
}

func stmtTrn(tx Tx) string {
	return fmt.Sprintf("<STMTTRN>\n<TRNTYPE>%s\n<DTPOSTED>%s\n<TRNAMT>%s\n<FITID>%s\n<MEMO>%s\n</STMTTRN>\n",
		tx.Type, tx.Date, tx.Amount, tx.ID, tx.Memo)
}

// BankStatement renders a checking account statement response.
func BankStatement(uid, acct string, txs ...Tx) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<STMTTRNRS>\n<TRNUID>%s\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n<STMTRS>\n<CURDEF>BRL\n", uid)
	fmt.Fprintf(&b, "<BANKACCTFROM>\n<BANKID>0341\n<ACCTID>%s\n<ACCTTYPE>CHECKING\n</BANKACCTFROM>\n", acct)
	b.WriteString("<BANKTRANLIST>\n<DTSTART>20240101\n<DTEND>20240131\n")
	for _, tx := range txs {
		b.WriteString(stmtTrn(tx))
	}
	b.WriteString("</BANKTRANLIST>\n<LEDGERBAL>\n<BALAMT>1000.00\n<DTASOF>20240131\n</LEDGERBAL>\n</STMTRS>\n</STMTTRNRS>\n")
	return b.String()
}

// CardStatement renders a credit card statement response.
func CardStatement(uid, acct string, txs ...Tx) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<CCSTMTTRNRS>\n<TRNUID>%s\n<STATUS>\n<CODE>0\n<SEVERITY>INFO\n</STATUS>\n<CCSTMTRS>\n<CURDEF>BRL\n", uid)
	fmt.Fprintf(&b, "<CCACCTFROM>\n<ACCTID>%s\n</CCACCTFROM>\n", acct)
	b.WriteString("<BANKTRANLIST>\n<DTSTART>20240101\n<DTEND>20240131\n")
	for _, tx := range txs {
		b.WriteString(stmtTrn(tx))
	}
	b.WriteString("</BANKTRANLIST>\n<LEDGERBAL>\n<BALAMT>-300.00\n<DTASOF>20240131\n</LEDGERBAL>\n</CCSTMTRS>\n</CCSTMTTRNRS>\n")
	return b.String()
}

// Document wraps statement responses in a complete OFX document, bank
// message set first.
func Document(bank []string, cards []string) string {
	return render(bankSet(bank) + cardSet(cards))
}

// DocumentCardsFirst is Document with the credit card message set ahead
// of the bank message set.
func DocumentCardsFirst(bank []string, cards []string) string {
	return render(cardSet(cards) + bankSet(bank))
}

func render(body string) string {
	return header + "<OFX>\n" + signon + body + "</OFX>\n"
}

func bankSet(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return "<BANKMSGSRSV1>\n" + strings.Join(stmts, "") + "</BANKMSGSRSV1>\n"
}

func cardSet(stmts []string) string {
	if len(stmts) == 0 {
		return ""
	}
	return "<CREDITCARDMSGSRSV1>\n" + strings.Join(stmts, "") + "</CREDITCARDMSGSRSV1>\n"
}

// Latin1 encodes a UTF-8 document the way Brazilian banks ship it.
// It panics on characters ISO-8859-1 cannot represent.
func Latin1(s string) []byte {
	out, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Sprintf("statementtest: %v", err))
	}
	return out
}

// SingleAccount is a one-account document with the given transactions,
// Latin-1 encoded.
func SingleAccount(txs ...Tx) []byte {
	return Latin1(Document([]string{BankStatement("1", "12345-6", txs...)}, nil))
}
