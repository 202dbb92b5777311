package portal

import (
	"github.com/ppiankov/casecrawl/internal/extract"
	"github.com/ppiankov/casecrawl/internal/model"
)

func defaultSections() model.SectionsConfig {
	rules := make([]model.SectionRule, len(extract.DefaultVocabulary))
	for i, label := range extract.DefaultVocabulary {
		rules[i] = model.SectionRule{Label: label}
	}
	return model.SectionsConfig{Rules: rules, FallbackLabel: extract.DefaultFallbackLabel}
}

func jeecgPreset() model.PortalConfig {
	return model.PortalConfig{
		BaseURL: "https://boot3.jeecg.com/jeecgboot",
		Headers: map[string]string{
			"Referer": "https://boot3.jeecg.com/login",
		},
		Login: model.LoginConfig{
			PageURL:       "https://boot3.jeecg.com/login",
			SubmitURL:     "{base}/sys/login",
			Encoding:      "json",
			UsernameField: "username",
			PasswordField: "password",
			CodeField:     "captcha",
			KeyField:      "checkKey",
			Challenge: model.ChallengeConfig{
				Enabled:   true,
				URL:       "{base}/sys/randomImage/{key}?_t={t}",
				KeyStyle:  model.KeyTimestampRandom,
				Format:    model.ChallengeJSON,
				ImagePath: "result",
			},
			Success: model.SuccessConfig{
				Kind:        model.SuccessJSONFlag,
				Path:        "success",
				MessagePath: "message",
				TokenPath:   "result.token",
				TokenHeader: "X-Access-Token",
			},
		},
		List: model.ListConfig{
			Kind:           model.ListJSON,
			URL:            "{base}/act/task/list",
			PageParam:      "pageNo",
			PageSizeParam:  "pageSize",
			PageSize:       10,
			FirstPage:      1,
			SortParam:      "column",
			SortColumn:     "createTime",
			OrderParam:     "order",
			Order:          "desc",
			TimestampParam: "_t",
			SuccessPath:    "success",
			SuccessEquals:  "true",
			MessagePath:    "message",
			RecordsPath:    "result.records",
			IDField:        "id",
		},
		Sections: defaultSections(),
	}
}

func gouguoaPreset() model.PortalConfig {
	return model.PortalConfig{
		BaseURL: "https://www.gouguoa.com",
		Headers: map[string]string{
			"Referer":          "{base}/login",
			"X-Requested-With": "XMLHttpRequest",
		},
		Login: model.LoginConfig{
			PageURL:       "{base}/login",
			SubmitURL:     "{base}/home/login/login_submit",
			Encoding:      "json",
			UsernameField: "username",
			PasswordField: "password",
			CodeField:     "captcha",
			KeyField:      "uuid",
			Challenge: model.ChallengeConfig{
				Enabled:  true,
				URL:      "{base}/captcha?uuid={key}",
				KeyStyle: model.KeyTimestamp,
				Format:   model.ChallengeImage,
			},
			Success: model.SuccessConfig{
				Kind:   model.SuccessJSONEquals,
				Path:   "msg",
				Equals: "登录成功",
			},
		},
		List: model.ListConfig{
			Kind:          model.ListJSON,
			URL:           "{base}/adm/official/datalist",
			PageParam:     "page",
			PageSizeParam: "limit",
			PageSize:      20,
			FirstPage:     1,
			SuccessPath:   "code",
			SuccessEquals: "0",
			MessagePath:   "msg",
			RecordsPath:   "data.list",
			IDField:       "id",
		},
		Sections: defaultSections(),
	}
}

func zmjgPreset() model.PortalConfig {
	return model.PortalConfig{
		BaseURL: "http://zmjg.zm.sc.yc",
		Login: model.LoginConfig{
			DiscoverForm:  true,
			SubmitURL:     "{base}/login",
			Encoding:      "form",
			UsernameField: "username",
			PasswordField: "password",
			Success: model.SuccessConfig{
				Kind:           model.SuccessHTMLMarkers,
				SuccessMarkers: []string{"案件"},
				FailureMarkers: []string{"用户名或密码错误", "验证码错误"},
				LoginMarkers:   []string{"登录"},
			},
		},
		List: model.ListConfig{
			Kind:             model.ListHTML,
			URL:              "{base}/case",
			DiscoverLinkText: "案件",
			ExpectedHeaders: []string{
				"案件编号", "查获单位", "承办部门", "查获部门", "当事人", "许可证号",
				"案发时间", "录入时间", "立案时间", "鉴定时间", "处罚（处理）决定时间", "结案时间",
			},
			IDColumn:      "案件编号",
			DetailPhrases: []string{"案件在办", "详情", "查看"},
		},
		Sections: defaultSections(),
	}
}
