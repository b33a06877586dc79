package classify

// Curated identifier name fragments per category. Order of evaluation is
// fixed in Pipeline.Classify: essential first so auth/session names are
// never misread as analytics.

var analyticsPatterns = []string{
	// Google Analytics
	"_ga", "_gid", "_gat", "_gaexp", "_gac", "__utma", "__utmb", "__utmc", "__utmz", "__utmt", "_gat_gtag_",
	// Hotjar
	"_hjid", "_hjsession", "_hjsessionuser", "_hjincludedinsample", "_hjincludedinsession",
	"_hjabsolutesessioninprogress", "_hjtldtest",
	// Adobe Analytics / Omniture
	"s_ppvl", "s_ppv", "s_cc", "s_sq", "s_vi", "s_ecid", "amcv_", "amcvs_",
	// Amplitude
	"amplitude_", "amplitude_id",
	// Mixpanel
	"mp_",
	// Segment
	"ajs_user_id", "ajs_anonymous_id", "ajs_",
	// Heap
	"heap_",
	// HubSpot
	"__hstc", "__hssrc", "__hssc", "hubspotutk",
	// Matomo/Piwik
	"matomo", "_pk_id", "_pk_ses",
	// Chartbeat
	"_chartbeat", "_cb",
	// Parsely
	"_parsely",
	// Microsoft Clarity
	"_clck", "_clsk",
	// Snapchat
	"_scid", "_scid_r",
	// Microsoft/Bing
	"_uetsid", "_uetvid",
	// Vimeo
	"vuid",
	// Yandex
	"_ym_uid", "_ym_d",
	// Generic
	"analytics", "utm_", "vid_", "visitor_id",
	// Quantcast
	"__qca", "mc",
	// Dynatrace and tag managers
	"dtcookie", "dtlatc", "dtpc", "rxvisitor", "rxvt", "utag_main",
	"_hp2_", "_hp2_id", "_hp2_ses", "_hp2_props",
	// Intercom
	"intercom-",
	// BBC
	"ckns_sa", "ckns_performance",
	// Snowplow
	"_sp_id", "_sp_ses",
}

var advertisingPatterns = []string{
	// Facebook
	"_fbp", "_fbc", "fr", "sb", "datr",
	// Google Ads
	"ide", "dsid", "anid", "nid", "flc", "aid", "taid", "1p_jar",
	"__secure-", "__host-", "__gads", "__gac", "__gads_",
	"_gcl_au", "_gcl_aw", "_gcl_dc", "_gcl_gb", "_gcl",
	// TikTok
	"_ttp", "tt_webid", "ttwid", "tt_appinfo", "_tt_enable_cookie", "ttclid",
	// Twitter
	"personalization_id", "guest_id", "gt",
	// LinkedIn
	"bcookie", "li_gc", "liap", "lidc",
	// Snapchat
	"_sctr", "sc_at",
	// Pinterest
	"_pin_unauth", "_pinterest",
	// YouTube
	"ysc", "visitor_info1_live", "yt-remote-",
	// Microsoft/Bing
	"muid", "mr", "srm_b",
	// UUID/tracking
	"uuid", "uuid2", "uuidc", "uid", "cid", "vid",
	// Criteo
	"criteo",
	// Generic advertising
	"ad_", "ads_", "ads_id", "pixel", "track", "cmp",
	// Third-party ad networks
	"cto_", "permutive", "ad-id",
	// DoubleClick
	"test_cookie",
	// AppNexus
	"anj",
	// BBC
	"ckns_ads",
}

var testingPatterns = []string{
	// Optimizely
	"optimizely", "optimizelyenduserid", "optimizelysegments", "optimizelybuckets",
	"_opt_awcid", "_opt_awmid", "_opt_expid", "_opt_utmc",
	// VWO
	"__pr", "_vis_opt_exp_", "_vis_opt_s", "_vwo_ds", "_vis_opt_test_slice",
	// Generic
	"experiment", "exp_", "variant", "split", "split_tester",
	"test_group", "bucket", "ab_", "abt",
	// Adobe Target
	"mbox",
	// CNN/NYTimes
	"fastab", "iter_id",
}

var personalizationPatterns = []string{
	"pref", "prefs", "theme", "lang", "language", "locale",
	"currency", "timezone", "tz", "view", "layout", "mode",
	"ui_", "user_settings", "dark_mode", "color_scheme",
	"ct0",
}

var essentialPatterns = []string{
	// Session
	"session", "sessionid", "session-id", "session-token", "_session_id",
	"sess", "sid", "s_id", "connect.sid",
	// PHP/Java/ASP
	"jsessionid", "phpsessid", "asp.net_sessionid",
	// CSRF
	"csrf", "csrftoken", "xsrf", "_csrf", "_xsrf",
	// Auth
	"auth", "auth_token", "token", "jwt", "access_token", "refresh_token",
	"sso_", "remember_me", "appid", "laravel_session", "_secure_session_id",
	// Cart
	"cart", "basket", "checkout", "cart_sig", "cart_ts",
	// User
	"login", "logged_in", "user", "uid", "ubid", "remember", "persistent",
	// Cloudflare
	"__cfruid", "__cfduid", "cf_clearance", "cf_", "_cfuvid",
	// Akamai
	"_abck", "ak_bmsc", "bm_sv", "bm_mi", "bm_sz", "akavpau_userid",
	// Incapsula
	"incap_ses_", "visid_incap_",
	// PerimeterX
	"_px", "_px2", "_px3", "_pxvid",
	// Security
	"challenge_", "bot_", "secure_",
	// Consent state
	"cookie_consent", "cookieconsent", "cookie_policy",
	"optanonconsent", "optanonalertboxclosed",
	"euconsent", "euconsent-v2", "truste", "cmpconsent",
	"ccpa", "gdpr", "consent_", "ckns_policy", "ckns_explicit",
	"ckns_", "eupubconsent",
	// E-commerce
	"_shopify_y", "_shopify_s", "_shopify_sa_p", "_shopify_sa_t",
	"secure_customer_sig", "__stripe_mid", "__stripe_sid", "__stripe_orig_props",
	// Site-specific essential
	"gu_u", "gu-cmp", "nyt-a", "nyt-gdpr", "nyt-purr", "countrycode",
	"usprivacy", "bbc-uid", "ckns_orb_nonce",
	"at-main", "sess-at-main", "x-main", "session-id-time",
	"aws-ubid-main", "sst-main", "lc-main", "sp-cdn", "regstatus",
	"i18n-prefs", "skin", "lv_cart", "lv_session", "datadome",
	"sgcookie", "nyt-t",
}

var socialPatterns = []string{
	"social", "share", "twitter_", "twtr", "li_", "linkedin",
	"pinterest", "_pinterest", "__atuvc", "__atuvs", "__stid",
}

// Known tracker serving domains. A cookie scoped to one of these is
// advertising regardless of its name.
var thirdPartyDomains = []string{
	"doubleclick.net", "google-analytics.com", "facebook.com", "facebook.net",
	"tiktok.com", "twitter.com", "linkedin.com", "quantserve.com",
	"scorecardresearch.com", "adsrvr.org", "adnxs.com", "criteo.com",
	"outbrain.com", "taboola.com", "pubmatic.com", "rubiconproject.com",
	"openx.net", "contextweb.com", "advertising.com", "turn.com",
	"serving-sys.com", "cdn.segment.com", "cdn.mxpnl.com", "hotjar.com", "clarity.ms",
}

// KnownTrackerNames are cookies that third-party scripts recreate after
// deletion; the monitoring rounds re-delete these specifically.
var KnownTrackerNames = []string{"_ga", "_gid", "_fbp", "_gcl_au", "_uetsid", "_ttp", "_scid"}
