package models

import (
	"encoding/xml"
	"strings"
)

// PaymentDocument represents the root of an incoming Bakong/NBC transaction
// XML document. Exactly one of the three message bodies is populated:
// a pain.007 customer payment reversal, a pain.001 customer credit transfer
// initiation, or an FI-to-FI customer credit transfer.
type PaymentDocument struct {
	XMLName          xml.Name                  `xml:"Document"`
	CstmrPmtRvsl     *CustomerPaymentReversal  `xml:"CstmrPmtRvsl"`
	CstmrCdtTrfInitn *CreditTransferInitiation `xml:"CstmrCdtTrfInitn"`
	// The feed spells the FI-to-FI tag with a lowercase "it"; keep it as
	// observed on the wire.
	FIToFICdtTrf *FIToFICreditTransfer `xml:"FitToFICstmrCdtTrf"`
}

// Amount represents a monetary amount with its currency attribute.
type Amount struct {
	Value string `xml:",chardata"`
	Ccy   string `xml:"Ccy,attr"`
}

// Agent represents a financial institution reference.
type Agent struct {
	FinInstnID struct {
		BICFI string `xml:"BICFI"`
	} `xml:"FinInstnId"`
}

// AccountID represents a non-IBAN account identification.
type AccountID struct {
	ID struct {
		Othr struct {
			ID string `xml:"Id"`
		} `xml:"Othr"`
	} `xml:"Id"`
}

// CustomerPaymentReversal is the pain.007 message body.
type CustomerPaymentReversal struct {
	GrpHdr struct {
		MsgID   string `xml:"MsgId"`
		CreDtTm string `xml:"CreDtTm"`
		DbtrAgt Agent  `xml:"DbtrAgt"`
		CdtrAgt Agent  `xml:"CdtrAgt"`
	} `xml:"GrpHdr"`
	OrgnlGrpInf struct {
		OrgnlMsgID   string `xml:"OrgnlMsgId"`
		OrgnlMsgNmID string `xml:"OrgnlMsgNmId"`
	} `xml:"OrgnlGrpInf"`
	OrgnlPmtInfAndRvsl struct {
		OrgnlPmtInfID string `xml:"OrgnlPmtInfId"`
		TxInf         struct {
			RvslID        string `xml:"RvslId"`
			OrgnlInstdAmt Amount `xml:"OrgnlInstdAmt"`
			RvsdInstdAmt  Amount `xml:"RvsdInstdAmt"`
			OrgnlTxRef    struct {
				DbtrAcct AccountID `xml:"DbtrAcct"`
				CdtrAcct AccountID `xml:"CdtrAcct"`
				DbtrAgt  Agent     `xml:"DbtrAgt"`
				CdtrAgt  Agent     `xml:"CdtrAgt"`
			} `xml:"OrgnlTxRef"`
		} `xml:"TxInf"`
	} `xml:"OrgnlPmtInfAndRvsl"`
}

// ReversedAmount returns the original instructed amount, falling back to the
// reversed instructed amount when the original is absent.
func (r *CustomerPaymentReversal) ReversedAmount() Amount {
	tx := &r.OrgnlPmtInfAndRvsl.TxInf
	if tx.OrgnlInstdAmt.Value != "" {
		return tx.OrgnlInstdAmt
	}
	return tx.RvsdInstdAmt
}

// DebtorBIC returns the debtor agent BIC from the original transaction
// reference, falling back to the group header.
func (r *CustomerPaymentReversal) DebtorBIC() string {
	if bic := r.OrgnlPmtInfAndRvsl.TxInf.OrgnlTxRef.DbtrAgt.FinInstnID.BICFI; bic != "" {
		return bic
	}
	return r.GrpHdr.DbtrAgt.FinInstnID.BICFI
}

// CreditorBIC returns the creditor agent BIC from the original transaction
// reference, falling back to the group header.
func (r *CustomerPaymentReversal) CreditorBIC() string {
	if bic := r.OrgnlPmtInfAndRvsl.TxInf.OrgnlTxRef.CdtrAgt.FinInstnID.BICFI; bic != "" {
		return bic
	}
	return r.GrpHdr.CdtrAgt.FinInstnID.BICFI
}

// CreditTransferTx is the per-transaction block shared by the two credit
// transfer shapes.
type CreditTransferTx struct {
	PmtID struct {
		InstrID    string `xml:"InstrId"`
		EndToEndID string `xml:"EndToEndId"`
	} `xml:"PmtId"`
	Amt struct {
		InstdAmt Amount `xml:"InstdAmt"`
	} `xml:"Amt"`
	CdtrAgt  Agent     `xml:"CdtrAgt"`
	CdtrAcct AccountID `xml:"CdtrAcct"`
	RmtInf   struct {
		Ustrd []string `xml:"Ustrd"`
	} `xml:"RmtInf"`
}

// RemittanceInfo joins the unstructured remittance lines into one string.
func (t *CreditTransferTx) RemittanceInfo() string {
	return strings.Join(t.RmtInf.Ustrd, " ")
}

// CreditTransferInitiation is the pain.001 message body.
type CreditTransferInitiation struct {
	GrpHdr struct {
		MsgID   string `xml:"MsgId"`
		CreDtTm string `xml:"CreDtTm"`
	} `xml:"GrpHdr"`
	PmtInf struct {
		PmtInfID string `xml:"PmtInfId"`
		Dbtr     struct {
			Nm string `xml:"Nm"`
		} `xml:"Dbtr"`
		DbtrAcct    AccountID        `xml:"DbtrAcct"`
		DbtrAgt     Agent            `xml:"DbtrAgt"`
		CdtTrfTxInf CreditTransferTx `xml:"CdtTrfTxInf"`
	} `xml:"PmtInf"`
}

// FIToFICreditTransfer is the financial-institution transfer message body.
// It carries the transaction block directly, without a payment information
// wrapper.
type FIToFICreditTransfer struct {
	GrpHdr struct {
		MsgID string `xml:"MsgId"`
	} `xml:"GrpHdr"`
	CdtTrfTxInf CreditTransferTx `xml:"CdtTrfTxInf"`
}
